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

package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		group uint8
		entry uint32
		alias uint32
	}{
		{0, 0, 0},
		{1, 0, aliasForGroup},
		{255, 0xFFFFFF, 0xFFFFFFFE},
		{42, 12345, 9999},
	}

	for _, c := range cases {
		referenceIndex := (uint32(c.group) << 24) | (c.entry & 0x00FFFFFF)
		ino := Encode(referenceIndex, c.alias)
		got := Decode(ino)

		assert.Equal(t, referenceIndex, got.ReferenceIndex)
		assert.Equal(t, c.alias, got.AliasIndex)
		assert.Equal(t, c.group, got.Group())
		assert.Equal(t, c.entry&0x00FFFFFF, got.Entry())

		// encode(decode(x)) == x for every inode produced by this package.
		assert.Equal(t, ino, Encode(got.ReferenceIndex, got.AliasIndex))
	}
}

func TestEncodeGroup(t *testing.T) {
	ino := EncodeGroup(1)
	assert.Equal(t, uint64(1)<<56|uint64(aliasForGroup), ino)

	d := Decode(ino)
	assert.True(t, d.IsGroupDirectory())
	assert.Equal(t, uint8(1), d.Group())

	ino2 := EncodeGroup(2)
	assert.Equal(t, uint64(2)<<56|uint64(aliasForGroup), ino2)
	assert.NotEqual(t, ino, ino2)
}

func TestIsGroupDirectoryFalseForAliasRows(t *testing.T) {
	ino := Encode((1<<24)|7, 3)
	d := Decode(ino)
	assert.False(t, d.IsGroupDirectory())
}

func TestRootIDIsReservedNotProduced(t *testing.T) {
	// RootID (1) is never produced by Encode/EncodeGroup for any
	// representable (group, entry, alias) combination used by this
	// package's own constructors, since EncodeGroup always sets the
	// alias-for-group sentinel in the low 32 bits.
	for g := uint8(0); g < 8; g++ {
		assert.NotEqual(t, uint64(RootID), EncodeGroup(g))
	}
}

func TestDecodedString(t *testing.T) {
	d := Decode(EncodeGroup(3))
	s := d.String()
	assert.Contains(t, s, "group=3")
	assert.Contains(t, s, "is_group_dir=true")
}
