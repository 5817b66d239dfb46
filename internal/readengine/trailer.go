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

// TrailerBlockSize is the fixed size of the synthesized archivelog
// trailer block.
const TrailerBlockSize = 512

// fillTrailer synthesizes the one extra block exposed past an
// archivelog's catalog-reported size: every byte 0xFE.
func fillTrailer() []byte {
	b := make([]byte, TrailerBlockSize)
	for i := range b {
		b[i] = 0xFE
	}
	return b
}

// GenerateStructuredTrailer builds the experimental, reverse-engineered
// archivelog trailer layout observed by diffing real trailer blocks
// against `ALTER SYSTEM DUMP LOGFILE` output. It is not wired into the
// shipped read path — CatalogRead always emits the plain 0xFE fill —
// but is kept for whoever picks up the structured layout next; several
// offsets (the RBA pointers at 0x10, 0x38, 0x40, 0x48, timestamp at
// 0x50) are known to vary per file and are left zero here.
func GenerateStructuredTrailer(blockNumber uint16, sequenceNumber uint8) []byte {
	b := make([]byte, TrailerBlockSize)

	putU16LE(b, 0x00, 0x2201) // block type identifier
	putU16LE(b, 0x04, blockNumber)
	b[0x08] = sequenceNumber
	putU16LE(b, 0x0A, 0x8010) // constant flags
	putU32LE(b, 0x0E, 0x0000008c)
	putU32LE(b, 0x18, 0x00000001)
	putU32LE(b, 0x22, 0x00010001)
	putU32LE(b, 0x25, 0x00000001)
	putU32LE(b, 0x28, 0x0a000001)
	putU32LE(b, 0x52, 0x00000418) // observed Oracle version marker

	return b
}

func putU16LE(buf []byte, offset int, value uint16) {
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
}

func putU32LE(buf []byte, offset int, value uint32) {
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
	buf[offset+2] = byte(value >> 16)
	buf[offset+3] = byte(value >> 24)
}
