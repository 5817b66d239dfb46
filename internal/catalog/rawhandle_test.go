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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMirrorWidthFor(t *testing.T) {
	assert.Equal(t, 1, mirrorWidthFor(0))
	assert.Equal(t, 2, mirrorWidthFor(1))
	assert.Equal(t, 3, mirrorWidthFor(2))
	assert.Equal(t, 1, mirrorWidthFor(-1))
}

func TestFileTypeName(t *testing.T) {
	assert.Equal(t, "ARCHIVELOG", fileTypeName(ArchivelogFileType))
	assert.Equal(t, "CONTROLFILE", fileTypeName(1))
	assert.Equal(t, "DATAFILE", fileTypeName(2))
	assert.Equal(t, "TEMPFILE", fileTypeName(11))
	assert.Equal(t, "", fileTypeName(99))
}
