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

// Package rawdev maps ASM disk labels to their backing block-device
// paths by shelling out to Oracle's afdtool, the same way asmcmd does.
// The mapping is fetched once per process and cached for its lifetime:
// disk group membership does not change while a mount is active.
package rawdev

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/usrecnik/asmfs/internal/logger"
)

// DeviceMap is a label -> block device path mapping, e.g.
// "DATA1" -> "/dev/sdd".
type DeviceMap map[string]string

// deviceMapOnce builds the device map exactly once. Failure here is
// fatal (spec.md §4.3 "Initialization failure is fatal", §7's fatal
// paths being limited to initial mount and device-map init) — the
// original `afd.rs` uses `.expect(...)` on the same call, and letting
// the mount come up with an empty map would instead fail every raw
// read one ENOENT at a time.
var deviceMapOnce = sync.OnceValue(func() DeviceMap {
	m, err := queryDeviceList()
	if err != nil {
		logger.Errorf("afdtool -getdevlist failed: %v", err)
		os.Exit(1)
	}
	return m
})

// Devices returns the process-lifetime disk label -> device path
// mapping, running afdtool at most once regardless of how many
// goroutines call this concurrently.
func Devices() DeviceMap {
	return deviceMapOnce()
}

// PathForLabel resolves a disk label such as "DATA1" to its block
// device path. The second return value is false if the label is
// unknown.
func PathForLabel(label string) (string, bool) {
	path, ok := Devices()[label]
	return path, ok
}

// queryDeviceList runs `afdtool -getdevlist` and parses its fixed
// three-line banner followed by "LABEL   PATH" rows:
//
//	--------------------------------------------------------------------------------
//	Label                     Path
//	================================================================================
//	DATA1                     /dev/sdd
//	DATA2                     /dev/sdb
func queryDeviceList() (DeviceMap, error) {
	logger.Infof("running 'afdtool -getdevlist'")

	cmd := exec.Command("afdtool", "-getdevlist")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running afdtool: %w", err)
	}

	m, err := parseDeviceList(string(out))
	if err != nil {
		return nil, err
	}

	logger.Infof("afdtool device map: %v", m)
	return m, nil
}

// parseDeviceList parses the banner-then-rows format of `afdtool
// -getdevlist`, skipping its first three lines.
func parseDeviceList(output string) (DeviceMap, error) {
	m := make(DeviceMap)
	scanner := bufio.NewScanner(strings.NewReader(output))

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= 3 {
			continue // banner, column header, separator
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		m[strings.TrimSpace(fields[0])] = strings.TrimSpace(fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing afdtool output: %w", err)
	}
	return m, nil
}
