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

// Package cfg binds the mount's flags to a nested Config struct via
// pflag/viper, the same split gcsfuse uses between flag parsing
// (cobra/pflag) and a typed, mergeable config object (viper).
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully-resolved mount configuration: one sub-struct per
// concern named in spec.md §6's flag list.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	Read ReadConfig `yaml:"read"`

	Mount MountConfig `yaml:"mount"`

	Logging LoggingConfig `yaml:"logging"`
}

// ConnectionConfig selects local external-auth vs. remote catalog
// connection (spec.md §4.2).
type ConnectionConfig struct {
	// ConnString is "user/pass@inst" for a remote connection, or empty
	// for a local connection authenticated via OS credentials.
	ConnString string `yaml:"conn-string" mapstructure:"conn-string"`
}

// ReadConfig selects the read engine and, in raw mode, which mirror
// copy of each allocation unit to address.
type ReadConfig struct {
	// NoRaw selects the catalog-mediated read engine (§4.4.1) instead
	// of the default raw device reads (§4.4.2).
	NoRaw bool `yaml:"no-raw" mapstructure:"no-raw"`

	// Mirror is which redundant AU copy raw mode reads: 0 primary, 1
	// or 2 secondary.
	Mirror int `yaml:"mirror"`
}

// MountConfig carries the FUSE mount-option toggles spec.md §4.6
// names.
type MountConfig struct {
	AutoUnmount bool `yaml:"auto-unmount" mapstructure:"auto-unmount"`
	AllowRoot   bool `yaml:"allow-root" mapstructure:"allow-root"`
}

// LoggingConfig selects the ambient logger's format and minimum
// severity (SPEC_FULL §2.1); not named by spec.md itself, carried
// regardless per the "ambient stack" rule.
type LoggingConfig struct {
	Format   string `yaml:"format"`
	Severity string `yaml:"severity"`
}

// BindFlags registers every asmfs flag on flagSet and binds it into
// viper's global config tree, following gcsfuse's cfg.BindFlags
// pattern: one flag registration plus one viper.BindPFlag call per
// field, each checked for error immediately.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("conn", "", "", "Remote catalog connection string, USER/PASS@INST. Omit for local external authentication.")
	if err = viper.BindPFlag("connection.conn-string", flagSet.Lookup("conn")); err != nil {
		return err
	}

	flagSet.BoolP("no-raw", "", false, "Use catalog-mediated reads through dbms_diskgroup instead of raw block-device reads.")
	if err = viper.BindPFlag("read.no-raw", flagSet.Lookup("no-raw")); err != nil {
		return err
	}

	flagSet.IntP("mirror", "", 0, "Which redundant AU copy to read in raw mode: 0 primary, 1 or 2 secondary.")
	if err = viper.BindPFlag("read.mirror", flagSet.Lookup("mirror")); err != nil {
		return err
	}

	flagSet.BoolP("auto-unmount", "", false, "Automatically unmount when the mounting process exits.")
	if err = viper.BindPFlag("mount.auto-unmount", flagSet.Lookup("auto-unmount")); err != nil {
		return err
	}

	flagSet.BoolP("allow-root", "", false, "Allow root to access this mount in addition to the mounting user.")
	if err = viper.BindPFlag("mount.allow-root", flagSet.Lookup("allow-root")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	return nil
}

// ValidateMirror reports whether m is one of the three mirror sides
// spec.md §4.6 allows.
func ValidateMirror(m int) bool {
	return m >= 0 && m <= 2
}
