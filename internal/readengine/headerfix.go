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

package readengine

import (
	"encoding/binary"
	"fmt"
)

// headerFixupXOR is the constant XOR'd into the checksum word and
// written verbatim into the metadata word during header fixup. Its
// value is wire-exact and must never change.
const headerFixupXOR uint32 = 0x000081A0

// magicFileTypes lists the raw-mode file type strings whose first
// block needs the header fixup applied.
var magicFileTypes = map[string]bool{
	"ARCHIVELOG":  true,
	"DATAFILE":    true,
	"TEMPFILE":    true,
	"CONTROLFILE": true,
}

// IsMagicFileType reports whether a raw-mode file type string needs
// FixHeaderBlock applied to its first block.
func IsMagicFileType(fileType string) bool {
	return magicFileTypes[fileType]
}

// FixHeaderBlock rewrites the first 512 bytes of a file's header block
// into the form the official copy path produces: it XORs the 32-bit
// little-endian word at [0x10:0x14) with headerFixupXOR, and overwrites
// [0x20:0x24) with headerFixupXOR itself. Applying this twice is not
// idempotent — the XOR at 0x10 flips back and forth on each call,
// while 0x20 stays fixed.
func FixHeaderBlock(buffer []byte) error {
	if len(buffer) < 512 {
		return fmt.Errorf("header buffer is %d bytes, need at least 512", len(buffer))
	}

	checksum := binary.LittleEndian.Uint32(buffer[0x10:0x14]) ^ headerFixupXOR
	binary.LittleEndian.PutUint32(buffer[0x10:0x14], checksum)

	binary.LittleEndian.PutUint32(buffer[0x20:0x24], headerFixupXOR)

	return nil
}
