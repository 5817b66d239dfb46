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

package catalog

import (
	"context"
	"fmt"
	"strings"
)

// RawFileAttr describes a file's raw-mode geometry: its AU size, its
// type string and its extent list (AU index -> disk + AU offset on
// that disk). Spec.md §4.5 treats extent-map materialization as an
// oracle method outside the read path's scope; this query is the
// concrete implementation that satisfies that oracle, built against
// the ASM instance's fixed views rather than the v$ views covered by
// spec.md §6 (those only describe the alias/file namespace, not
// physical striping).
type RawFileAttr struct {
	FileSizeBytes uint64
	AUSize        uint32
	FileType      string
	AUList        []RawExtent
	DiskNames     []string // disk name per AU list entry's DiskKey, for DiskList resolution
}

// RawExtent is one (disk_key, au_offset_in_disk) pair as returned by
// the extent-pointer query, before resolving disk_key to a block
// device path.
type RawExtent struct {
	DiskKey      string
	AUOffsetInDisk uint32
}

// GetRawFileAttr resolves targetPath's AU size, byte size, file type
// and ordered extent map for the requested mirror side. mirror
// selects which redundant copy of each AU to address: 0 is primary,
// 1 and 2 are secondary copies for normal/high redundancy disk
// groups, matching spec.md's Mirror glossary entry.
//
// Extent pointers come from X$KFFXP (one row per (file, extent,
// mirror-side)), joined against X$KFDSK for the disk name that backs
// each pointer. This mirrors how asmcmd's own "dd"/"cp" implementation
// walks a file's extent map; spec.md §1 lists the device-to-path
// helper as an external collaborator, so only the disk *name* is
// resolved here — internal/rawdev maps that name to a /dev path.
func (c *Client) GetRawFileAttr(ctx context.Context, targetPath string, mirror int) (RawFileAttr, error) {
	attr, err := c.GetFileAttr(ctx, targetPath)
	if err != nil {
		return RawFileAttr{}, err
	}

	// targetPath is "+GROUP/dir/.../name"; v$asm_alias.name holds only
	// the last component, so match on the group and that component.
	groupName, rest, _ := strings.Cut(strings.TrimPrefix(targetPath, "+"), "/")
	aliasName := rest[strings.LastIndexByte(rest, '/')+1:]

	var groupNumber uint8
	var fileNumber, auSize uint32
	row := c.db.QueryRowContext(ctx, `
		select g.group_number, f.file_number, g.allocation_unit_size
			from v$asm_diskgroup g
			join v$asm_alias a on a.group_number = g.group_number
			join v$asm_file f on f.file_number = a.file_number and f.group_number = g.group_number
			where g.name = :1 and a.name = :2
			fetch first 1 rows only
	`, groupName, aliasName)
	if err := row.Scan(&groupNumber, &fileNumber, &auSize); err != nil {
		return RawFileAttr{}, fmt.Errorf("resolving group/file number for %q: %w", targetPath, err)
	}

	query := `
		select x.au_kffxp, d.name
			from x$kffxp x
			join x$kfdsk d on d.number_kfdsk = x.disk_kffxp and d.group_kfdsk = x.group_kffxp
			where x.group_kffxp = :1
			  and x.number_kffxp = :2
			  and x.xnum_kffxp < :3
			  and mod(x.pxn_kffxp, :4) = :5
			order by x.xnum_kffxp
	`
	mirrorWidth := mirrorWidthFor(mirror)
	rows, err := c.db.QueryContext(ctx, query, groupNumber, fileNumber, extentCountLimit, mirrorWidth, mirror)
	if err != nil {
		return RawFileAttr{}, fmt.Errorf("querying x$kffxp for %q: %w", targetPath, err)
	}
	defer rows.Close()

	var list []RawExtent
	var diskNames []string
	for rows.Next() {
		var auOffset uint32
		var diskName string
		if err := rows.Scan(&auOffset, &diskName); err != nil {
			return RawFileAttr{}, fmt.Errorf("scanning extent row for %q: %w", targetPath, err)
		}
		list = append(list, RawExtent{DiskKey: diskName, AUOffsetInDisk: auOffset})
		diskNames = append(diskNames, diskName)
	}
	if err := rows.Err(); err != nil {
		return RawFileAttr{}, fmt.Errorf("reading extent rows for %q: %w", targetPath, err)
	}

	return RawFileAttr{
		FileSizeBytes: attr.SizeAsm,
		AUSize:        auSize,
		FileType:      fileTypeName(attr.FileType),
		AUList:        list,
		DiskNames:     diskNames,
	}, nil
}

// extentCountLimit bounds the x$kffxp scan so a runaway file (or a
// query missing its xnum predicate) can't return an unbounded result
// set; 4M extents covers files far larger than ASM practically stripes.
const extentCountLimit = 1 << 22

// mirrorWidthFor returns the modulus used to pick one row per xnum
// out of X$KFFXP's per-mirror-side rows. Unmirrored (external
// redundancy) disk groups only ever produce mirror==0 rows; requesting
// mirror 1 or 2 against one simply returns no rows, which the caller
// sees as an empty extent map.
func mirrorWidthFor(mirror int) int {
	if mirror <= 0 {
		return 1
	}
	return mirror + 1
}

// fileTypeName maps dbms_diskgroup's numeric file_type to the type
// string readengine.IsMagicFileType expects. Types with no header
// fixup map to an empty string, which IsMagicFileType always reports
// false for.
func fileTypeName(fileType uint32) string {
	switch fileType {
	case ArchivelogFileType:
		return "ARCHIVELOG"
	case 1:
		return "CONTROLFILE"
	case 2:
		return "DATAFILE"
	case 11:
		return "TEMPFILE"
	default:
		return ""
	}
}
