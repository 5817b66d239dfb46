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

package cfg

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags_DefaultsUnmarshalCleanly(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("asmfs", pflag.ContinueOnError)

	require.NoError(t, BindFlags(flagSet))
	require.NoError(t, flagSet.Parse(nil))

	var c Config
	require.NoError(t, viper.Unmarshal(&c))

	assert.Equal(t, "", c.Connection.ConnString)
	assert.False(t, c.Read.NoRaw)
	assert.Equal(t, 0, c.Read.Mirror)
	assert.False(t, c.Mount.AutoUnmount)
	assert.False(t, c.Mount.AllowRoot)
	assert.Equal(t, "text", c.Logging.Format)
	assert.Equal(t, "INFO", c.Logging.Severity)
}

func TestBindFlags_ParsedValuesUnmarshal(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("asmfs", pflag.ContinueOnError)

	require.NoError(t, BindFlags(flagSet))
	require.NoError(t, flagSet.Parse([]string{
		"--conn", "sys/oracle@db01:1521/ORCLCDB",
		"--no-raw",
		"--mirror", "1",
		"--auto-unmount",
		"--allow-root",
		"--log-format", "json",
		"--log-severity", "DEBUG",
	}))

	var c Config
	require.NoError(t, viper.Unmarshal(&c))

	assert.Equal(t, "sys/oracle@db01:1521/ORCLCDB", c.Connection.ConnString)
	assert.True(t, c.Read.NoRaw)
	assert.Equal(t, 1, c.Read.Mirror)
	assert.True(t, c.Mount.AutoUnmount)
	assert.True(t, c.Mount.AllowRoot)
	assert.Equal(t, "json", c.Logging.Format)
	assert.Equal(t, "DEBUG", c.Logging.Severity)
}

func TestValidateMirror(t *testing.T) {
	assert.True(t, ValidateMirror(0))
	assert.True(t, ValidateMirror(1))
	assert.True(t, ValidateMirror(2))
	assert.False(t, ValidateMirror(3))
	assert.False(t, ValidateMirror(-1))
}
