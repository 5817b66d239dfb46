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

// Package inode flattens the ASM catalog's two-level key
// (reference_index, alias_index) into the single uint64 that the FUSE
// kernel bridge requires for every inode number.
//
//	+---------+-----------------------------+-----------------------------+
//	| group#  |   entry_number (24 bits)     |    alias_index (32 bits)    |
//	|  u8     |        u32 (partial)         |            u32              |
//	+---------+-----------------------------+-----------------------------+
//
// reference_index, the ASM catalog's own column of that name, is the
// concatenation of group_number and entry_number: (group<<24)|entry.
package inode

import "fmt"

// RootID is the distinguished inode the FUSE kernel bridge uses for the
// mount point itself. EncodeGroup never produces it, nor does Encode for
// a real catalog row; it is special-cased by callers.
const RootID = 1

// aliasForGroup is the sentinel alias index that marks a volume-group
// directory rather than a real catalog alias row.
const aliasForGroup uint32 = 0xFFFFFFFF

// entryRoot is the entry number used when synthesizing a group-directory
// inode; it is the low end of the 24-bit entry space.
const entryRoot uint32 = 0x000000

// Decoded is the unpacked form of an inode: the reference index split
// into its group and entry components, plus the alias index.
type Decoded struct {
	ReferenceIndex uint32
	AliasIndex     uint32
}

// Group returns the 8-bit volume-group number occupying the top byte of
// the reference index.
func (d Decoded) Group() uint8 {
	return uint8(d.ReferenceIndex >> 24)
}

// Entry returns the 24-bit entry number, i.e. the reference index with
// the group byte masked off.
func (d Decoded) Entry() uint32 {
	return d.ReferenceIndex & 0x00FFFFFF
}

// IsGroupDirectory reports whether this decoded inode addresses a
// volume-group directory rather than a catalog alias row.
func (d Decoded) IsGroupDirectory() bool {
	return d.Entry() == entryRoot && d.AliasIndex == aliasForGroup
}

func (d Decoded) String() string {
	return fmt.Sprintf(
		"inode{group=%d reference_index=%d/%#x alias_index=%#x entry=%#x is_group_dir=%v}",
		d.Group(), d.ReferenceIndex, d.ReferenceIndex, d.AliasIndex, d.Entry(), d.IsGroupDirectory())
}

// Encode packs a (reference_index, alias_index) pair into a uint64
// inode number. The caller is responsible for never passing a pair that
// collides with RootID: Encode(0, 1) is 1, but a real catalog row's
// reference_index carries a group number of 1..255 in its top byte, so
// its inode is at least 1<<56. RootID is handled entirely outside this
// package.
func Encode(referenceIndex, aliasIndex uint32) uint64 {
	return (uint64(referenceIndex) << 32) | uint64(aliasIndex)
}

// EncodeGroup builds the inode for the top-level directory of volume
// group g (1..255), i.e. the sentinel alias row for that group.
func EncodeGroup(g uint8) uint64 {
	referenceIndex := (uint32(g) << 24) | entryRoot
	return Encode(referenceIndex, aliasForGroup)
}

// Decode unpacks an inode minted by Encode/EncodeGroup. It does not
// special-case RootID; callers must check for that separately, since the
// value 1 is not itself a valid (reference_index, alias_index) encoding
// produced by this package on a real catalog row.
func Decode(ino uint64) Decoded {
	return Decoded{
		ReferenceIndex: uint32(ino >> 32),
		AliasIndex:     uint32(ino),
	}
}
