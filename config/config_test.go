// config_test.go - Client daemon configuration tests.
// Copyright (C) 2026  The veilchat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	require := require.New(t)

	_, err := Load(nil)
	require.Error(err, "Load() with nil config")

	const basicConfig = `# A basic configuration example.
DataDir = "/var/lib/veilchat"

[Logging]
Level = "DEBUG"

[Tor]
SocksAddress = "127.0.0.1:9150"
ControlAddress = "127.0.0.1:9151"
`

	cfg, err := Load([]byte(basicConfig))
	require.NoError(err, "Load() with basic config")
	require.Equal("/var/lib/veilchat", cfg.DataDir)
	require.Equal("DEBUG", cfg.Logging.Level)
	require.Equal("127.0.0.1:9150", cfg.Tor.SocksAddress)
	require.Equal("127.0.0.1:9151", cfg.Tor.ControlAddress)
}

func TestConfigDefaults(t *testing.T) {
	require := require.New(t)

	const minimalConfig = `DataDir = "/var/lib/veilchat"
`

	cfg, err := Load([]byte(minimalConfig))
	require.NoError(err, "Load() with minimal config")
	require.NotNil(cfg.Logging)
	require.Equal("NOTICE", cfg.Logging.Level, "default log level")
	require.False(cfg.Logging.Disable)
	require.NotNil(cfg.Tor)
	require.Equal("127.0.0.1:9050", cfg.Tor.SocksAddress, "default SOCKS address")
}

func TestConfigValidation(t *testing.T) {
	require := require.New(t)

	// Relative DataDir.
	_, err := Load([]byte(`DataDir = "var/lib/veilchat"` + "\n"))
	require.Error(err, "Load() with relative DataDir")

	// Bogus log level.
	_, err = Load([]byte(`DataDir = "/var/lib/veilchat"

[Logging]
Level = "SHOUTING"
`))
	require.Error(err, "Load() with invalid log level")

	// Log level case is normalized.
	cfg, err := Load([]byte(`DataDir = "/var/lib/veilchat"

[Logging]
Level = "debug"
`))
	require.NoError(err)
	require.Equal("DEBUG", cfg.Logging.Level)

	// Unknown keys are rejected.
	_, err = Load([]byte(`DataDir = "/var/lib/veilchat"
Bogus = 42
`))
	require.Error(err, "Load() with undecoded keys")
}
