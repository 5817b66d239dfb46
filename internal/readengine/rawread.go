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
	"fmt"
	"io"
	"os"

	"github.com/usrecnik/asmfs/internal/logger"
)

// Extent is one entry of a file's allocation-unit extent map: which
// disk carries this AU, and at what AU-aligned offset on that disk.
type Extent struct {
	DiskKey      string
	AUOffsetInDisk uint32
}

// RawHandle is the per-open-file state of a raw-mode read: the file's
// size and type, its AU size, its ordered extent map, and the disk
// label -> block-device path mapping needed to resolve each extent.
// Building the extent map itself (walking the catalog's striping
// metadata) is outside this package's scope; RawHandle is the already-
// materialized result handed to RawRead.
type RawHandle struct {
	FileSizeBytes uint64
	AUSize        uint32
	FileType      string
	AUList        []Extent
	DiskList      map[string]string
}

// deviceOpener abstracts *os.File construction so tests can substitute
// an in-memory backing store instead of real block devices.
type deviceOpener func(path string) (io.ReaderAt, func() error, error)

func openRealDevice(path string) (io.ReaderAt, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// RawRead implements §4.4.2: it clips the request to the file's real
// size, walks the AU range the request spans, and reads each AU's
// bytes straight from its backing block device via pread-style seeks.
func RawRead(h RawHandle, offset int64, size uint32) ([]byte, error) {
	return rawRead(h, offset, size, openRealDevice)
}

func rawRead(h RawHandle, offset int64, size uint32, open deviceOpener) ([]byte, error) {
	requested := int64(size)
	if uint64(offset)+uint64(requested) > h.FileSizeBytes {
		requested = int64(h.FileSizeBytes) - offset
		if requested < 0 {
			requested = 0
		}
	}
	if requested == 0 {
		return []byte{}, nil
	}

	auSize := int64(h.AUSize)
	auFirst := offset / auSize
	auLast := auFirst + requested/auSize

	buffer := make([]byte, 0, requested)
	var bytesRead int64

	for auIndex := auFirst; auIndex <= auLast; auIndex++ {
		var firstByte int64
		if auIndex == auFirst {
			firstByte = offset % auSize
		}

		bytesThisAU := auSize - firstByte
		if remaining := requested - bytesRead; remaining < bytesThisAU {
			bytesThisAU = remaining
		}
		if bytesThisAU <= 0 {
			break
		}

		if auIndex < 0 || int(auIndex) >= len(h.AUList) {
			return nil, fmt.Errorf("au_index %d out of range (extent map has %d entries)", auIndex, len(h.AUList))
		}
		extent := h.AUList[auIndex]

		devicePath, ok := h.DiskList[extent.DiskKey]
		if !ok {
			return nil, fmt.Errorf("no block device registered for disk key %q", extent.DiskKey)
		}

		deviceOffset := int64(extent.AUOffsetInDisk)*auSize + firstByte
		chunk, err := readAt(open, devicePath, deviceOffset, bytesThisAU)
		if err != nil {
			return nil, fmt.Errorf("reading au_index=%d from %s at offset %d: %w", auIndex, devicePath, deviceOffset, err)
		}

		bytesRead += int64(len(chunk))
		buffer = append(buffer, chunk...)
	}

	if offset == 0 && IsMagicFileType(h.FileType) {
		if err := FixHeaderBlock(buffer); err != nil {
			logger.Errorf("raw read: failed to fix header block: %v", err)
			return nil, err
		}
	}

	return buffer, nil
}

func readAt(open deviceOpener, path string, offset, length int64) ([]byte, error) {
	dev, closeFn, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("opening block device: %w", err)
	}
	defer closeFn()

	buf := make([]byte, length)
	if _, err := dev.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("reading block device: %w", err)
	}
	return buf, nil
}
