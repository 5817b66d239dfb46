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

package cmd

import (
	"context"
	"fmt"

	"github.com/jacobsa/fuse"

	"github.com/usrecnik/asmfs/cfg"
	"github.com/usrecnik/asmfs/internal/asmfs"
	"github.com/usrecnik/asmfs/internal/catalog"
	"github.com/usrecnik/asmfs/internal/logger"
	"github.com/usrecnik/asmfs/internal/rawdev"
	"github.com/usrecnik/asmfs/internal/readengine"
)

const fsName = "asmfs"

// Mount connects to the ASM catalog, builds a fuse.Server over it, and
// mounts at mountPoint. It blocks until the mount is unmounted (either
// by the user or, with --auto-unmount, when this process exits),
// matching spec.md §4.6's front-end responsibilities.
func Mount(ctx context.Context, mountPoint string, c *cfg.Config) error {
	meta, err := catalog.Connect(ctx, c.Connection.ConnString)
	if err != nil {
		return fmt.Errorf("connecting to ASM catalog: %w", err)
	}
	defer meta.Close()

	serverCfg := &asmfs.ServerConfig{
		MetaClient: meta,
		MountPoint: mountPoint,
		FilePerms:  0755,
		DirPerms:   0755,
	}

	if c.Read.NoRaw {
		serverCfg.Mode = asmfs.ModeCatalog
		serverCfg.OpenSession = func(ctx context.Context) (asmfs.CatalogClient, error) {
			return catalog.Connect(ctx, c.Connection.ConnString)
		}
	} else {
		serverCfg.Mode = asmfs.ModeRaw
		serverCfg.RawExtentMapper = rawExtentMapper(meta, c.Read.Mirror)
	}

	server, err := asmfs.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("building filesystem server: %w", err)
	}

	logger.Infof("mounting %s at %s (raw=%v mirror=%d)", fsName, mountPoint, !c.Read.NoRaw, c.Read.Mirror)

	mfs, err := fuse.Mount(mountPoint, server, fuseMountConfig(c))
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	if err := mfs.Join(ctx); err != nil {
		return fmt.Errorf("serving filesystem: %w", err)
	}
	return nil
}

// fuseMountConfig translates cfg.Config's mount toggles into the
// "-o"-style option map jacobsa/fuse forwards to the kernel mount
// call, the way gcsfuse's getFuseMountConfig turns its own FuseOptions
// list into the same map[string]string shape.
func fuseMountConfig(c *cfg.Config) *fuse.MountConfig {
	options := map[string]string{"ro": ""}
	if c.Mount.AllowRoot {
		options["allow_root"] = ""
	}
	if c.Mount.AutoUnmount {
		options["auto_unmount"] = ""
	}

	return &fuse.MountConfig{
		FSName:      fsName,
		Subtype:     fsName,
		VolumeName:  fsName,
		Options:     options,
		ErrorLogger: logger.NewStdLogger(logger.LevelError, "fuse: "),
		DebugLogger: logger.NewStdLogger(logger.LevelTrace, "fuse_debug: "),
	}
}

// rawExtentMapper closes over the metadata client and the configured
// mirror side to satisfy asmfs.RawExtentMapper: resolve the alias to
// its system path, fetch its AU geometry and extent list, and resolve
// every disk name in that extent list to a block-device path via
// rawdev before handing the filled-in readengine.RawHandle back to the
// adapter.
func rawExtentMapper(meta *catalog.Client, mirror int) asmfs.RawExtentMapper {
	return func(ctx context.Context, alias catalog.Alias) (readengine.RawHandle, error) {
		targetPath, err := meta.ResolveLink(ctx, alias.ReferenceIndex, alias.AliasIndex)
		if err != nil {
			return readengine.RawHandle{}, fmt.Errorf("resolving raw target path: %w", err)
		}

		raw, err := meta.GetRawFileAttr(ctx, targetPath, mirror)
		if err != nil {
			return readengine.RawHandle{}, fmt.Errorf("fetching extent map for %q: %w", targetPath, err)
		}

		diskList := make(map[string]string, len(raw.DiskNames))
		for _, name := range raw.DiskNames {
			if _, ok := diskList[name]; ok {
				continue
			}
			path, ok := rawdev.PathForLabel(name)
			if !ok {
				return readengine.RawHandle{}, fmt.Errorf("no block device registered for disk %q", name)
			}
			diskList[name] = path
		}

		extents := make([]readengine.Extent, len(raw.AUList))
		for i, e := range raw.AUList {
			extents[i] = readengine.Extent{DiskKey: e.DiskKey, AUOffsetInDisk: e.AUOffsetInDisk}
		}

		return readengine.RawHandle{
			FileSizeBytes: raw.FileSizeBytes,
			AUSize:        raw.AUSize,
			FileType:      raw.FileType,
			AUList:        extents,
			DiskList:      diskList,
		}, nil
	}
}
