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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usrecnik/asmfs/internal/catalog"
)

type call struct {
	offsetInBlocks int64
	amountInBlocks uint32
}

type fakeBlockReader struct {
	calls []call
	fill  byte
}

func (f *fakeBlockReader) ReadBlocks(_ context.Context, _ uint64, blockSize uint32, offsetInBlocks int64, amountInBlocks uint32) ([]byte, error) {
	f.calls = append(f.calls, call{offsetInBlocks, amountInBlocks})
	buf := make([]byte, blockSize*amountInBlocks)
	for i := range buf {
		buf[i] = f.fill
	}
	return buf, nil
}

func TestCatalogRead_ArchivelogTrailerOnly(t *testing.T) {
	// Scenario 5: file_type=4, block_size=512, size_asm=1024, size_fs=1536;
	// read(offset=1024, size=512) must return exactly 512 bytes of 0xFE
	// without issuing a catalog read for the nonexistent raw block.
	reader := &fakeBlockReader{fill: 0xAB}
	h := CatalogHandle{Handle: 1, BlockSize: 512, SizeAsm: 1024, SizeFs: 1536, FileType: catalog.ArchivelogFileType}

	out, err := CatalogRead(context.Background(), reader, h, 1024, 512)
	require.NoError(t, err)
	assert.Len(t, out, 512)
	for _, b := range out {
		assert.Equal(t, byte(0xFE), b)
	}
	assert.Empty(t, reader.calls, "no catalog read should be issued for the synthesized trailer block")
}

func TestCatalogRead_SPFileOffsetFix(t *testing.T) {
	reader := &fakeBlockReader{fill: 0x11}
	h := CatalogHandle{Handle: 1, BlockSize: 512, SizeAsm: 4096, SizeFs: 4096, FileType: catalog.SPFileFileType}

	_, err := CatalogRead(context.Background(), reader, h, 0, 1024)
	require.NoError(t, err)
	require.NotEmpty(t, reader.calls)
	assert.Equal(t, int64(1), reader.calls[0].offsetInBlocks)
}

func TestCatalogRead_NonSPFileStartsAtBlockZero(t *testing.T) {
	reader := &fakeBlockReader{fill: 0x22}
	h := CatalogHandle{Handle: 1, BlockSize: 512, SizeAsm: 4096, SizeFs: 4096, FileType: 2}

	_, err := CatalogRead(context.Background(), reader, h, 0, 1024)
	require.NoError(t, err)
	require.NotEmpty(t, reader.calls)
	assert.Equal(t, int64(0), reader.calls[0].offsetInBlocks)
}

func TestCatalogRead_ChunkingBoundIs24KiB(t *testing.T) {
	reader := &fakeBlockReader{fill: 0x33}
	h := CatalogHandle{Handle: 1, BlockSize: 512, SizeAsm: 1 << 20, SizeFs: 1 << 20, FileType: 2}

	_, err := CatalogRead(context.Background(), reader, h, 4096, 200*1024)
	require.NoError(t, err)
	for _, c := range reader.calls {
		assert.LessOrEqual(t, c.amountInBlocks*h.BlockSize, uint32(24*1024))
	}
}

func TestCatalogRead_UnsupportedBlockSizeReturnsEmpty(t *testing.T) {
	reader := &fakeBlockReader{}
	h := CatalogHandle{Handle: 1, BlockSize: 32 * 1024, SizeAsm: 1 << 20, SizeFs: 1 << 20, FileType: 2}

	out, err := CatalogRead(context.Background(), reader, h, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, reader.calls)
}

func TestCatalogRead_ClampsRequestToFileSize(t *testing.T) {
	reader := &fakeBlockReader{fill: 0x44}
	h := CatalogHandle{Handle: 1, BlockSize: 512, SizeAsm: 1024, SizeFs: 1024, FileType: 2}

	out, err := CatalogRead(context.Background(), reader, h, 0, 4096)
	require.NoError(t, err)
	assert.Len(t, out, 1024)
}

func TestCatalogRead_OffsetBeyondFileReturnsEmpty(t *testing.T) {
	reader := &fakeBlockReader{fill: 0x55}
	h := CatalogHandle{Handle: 1, BlockSize: 512, SizeAsm: 1024, SizeFs: 1024, FileType: 2}

	out, err := CatalogRead(context.Background(), reader, h, 100000, 512)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCatalogRead_HeaderFixupAppliedAtOffsetZero(t *testing.T) {
	reader := &fakeBlockReader{fill: 0x00}
	h := CatalogHandle{Handle: 1, BlockSize: 1024, SizeAsm: 1536 * 1024, SizeFs: 1536 * 1024 + 1024, FileType: catalog.ArchivelogFileType}

	out, err := CatalogRead(context.Background(), reader, h, 0, 1024)
	require.NoError(t, err)
	require.Len(t, out, 1024)
	assert.Equal(t, byte(0xA0), out[0x20])
	assert.Equal(t, byte(0x81), out[0x21])
}
