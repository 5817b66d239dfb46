// Copyright 2026 The asmfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd wires asmfs's cfg.Config into a cobra command: one
// positional mount point, the flags spec.md §6 names, and a RunE that
// hands control to Mount in mount.go. Structurally this follows
// gcsfuse's cmd/root.go (flags bound once in init, config
// unmarshalled in a cobra.OnInitialize hook, deferred errors surfaced
// from RunE) with the bucket-name positional argument dropped, since
// asmfs addresses a whole catalog rather than one bucket.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/usrecnik/asmfs/cfg"
	"github.com/usrecnik/asmfs/internal/logger"
)

var (
	bindErr      error
	unmarshalErr error
	mountConfig  cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "asmfs [flags] MOUNT_POINT",
	Short: "Mount an Oracle ASM catalog's alias namespace as a read-only local filesystem",
	Long: `asmfs presents an Oracle Automatic Storage Management disk group's
alias namespace as a read-only, POSIX-like directory tree: each volume
group is a top-level "+NAME" directory, each directory alias a
subdirectory, each user alias a symbolic link, and each system-created
data file a regular file readable byte-for-byte.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := validateConfig(); err != nil {
			return err
		}

		mountPoint, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving mount point: %w", err)
		}

		logger.SetLogFormat(mountConfig.Logging.Format)
		logger.SetLogLevel(mountConfig.Logging.Severity)

		return Mount(context.Background(), mountPoint, &mountConfig)
	},
}

func validateConfig() error {
	if !cfg.ValidateMirror(mountConfig.Read.Mirror) {
		return fmt.Errorf("--mirror must be 0, 1 or 2, got %d", mountConfig.Read.Mirror)
	}
	return nil
}

// Execute runs the root command, printing any error to stderr and
// exiting 1, matching spec.md §6's "Exit codes: 0 on clean unmount; 1
// on catalog connect failure or mount failure."
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	bindErr = cfg.BindFlags(rootCmd.Flags())
	cobra.OnInitialize(func() {
		unmarshalErr = viper.Unmarshal(&mountConfig)
	})
}
