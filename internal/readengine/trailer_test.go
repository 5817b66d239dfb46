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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillTrailer_SizeAndFill(t *testing.T) {
	b := fillTrailer()
	assert.Len(t, b, TrailerBlockSize)
	for i, v := range b {
		assert.Equalf(t, byte(0xFE), v, "byte %d", i)
	}
}

func TestGenerateStructuredTrailer_SizeAndBlockType(t *testing.T) {
	b := GenerateStructuredTrailer(7, 3)
	assert.Len(t, b, TrailerBlockSize)
	assert.Equal(t, byte(0x01), b[0x00])
	assert.Equal(t, byte(0x22), b[0x01])
	assert.Equal(t, byte(0x07), b[0x04])
	assert.Equal(t, byte(0x03), b[0x08])
}
