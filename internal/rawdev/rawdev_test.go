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

package rawdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleOutput = `--------------------------------------------------------------------------------
Label                     Path
================================================================================
DATA1                     /dev/sdd
DATA2                     /dev/sdb
DATA3                     /dev/sde
`

func TestParseDeviceList(t *testing.T) {
	m, err := parseDeviceList(sampleOutput)
	assert.NoError(t, err)
	assert.Equal(t, DeviceMap{
		"DATA1": "/dev/sdd",
		"DATA2": "/dev/sdb",
		"DATA3": "/dev/sde",
	}, m)
}

func TestParseDeviceList_EmptyAfterBanner(t *testing.T) {
	m, err := parseDeviceList("line1\nline2\nline3\n")
	assert.NoError(t, err)
	assert.Empty(t, m)
}

func TestParseDeviceList_SkipsRaggedLines(t *testing.T) {
	m, err := parseDeviceList("h1\nh2\nh3\nonly-one-field\nDATA1   /dev/sdd\n")
	assert.NoError(t, err)
	assert.Equal(t, DeviceMap{"DATA1": "/dev/sdd"}, m)
}
