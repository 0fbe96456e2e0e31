// config.go - Client daemon configuration.
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

// Package config implements the configuration for the veilchat client
// daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultLogLevel     = "NOTICE"
	defaultSocksAddress = "127.0.0.1:9050"
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl // Force uppercase.
	return nil
}

// Tor is the hidden service transport endpoint configuration.  The
// transport itself lives outside this repository; these values are handed
// to it verbatim.
type Tor struct {
	// SocksAddress is the address of the Tor SOCKS port used for
	// outgoing connections.
	SocksAddress string

	// ControlAddress is the address of the Tor control port used to
	// publish the client's hidden service.
	ControlAddress string
}

func (tCfg *Tor) fixup() {
	if tCfg.SocksAddress == "" {
		tCfg.SocksAddress = defaultSocksAddress
	}
}

// Config is the top-level daemon configuration.
type Config struct {
	// DataDir is the absolute path to the daemon's state directory.
	DataDir string

	Logging *Logging
	Tor     *Tor
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration.
func (c *Config) FixupAndValidate() error {
	if c.DataDir == "" {
		return errors.New("config: DataDir is missing")
	}
	if !filepath.IsAbs(c.DataDir) {
		return fmt.Errorf("config: DataDir '%v' is not an absolute path", c.DataDir)
	}

	if c.Logging == nil {
		c.Logging = &defaultLogging
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}

	if c.Tor == nil {
		c.Tor = new(Tor)
	}
	c.Tor.fixup()
	return nil
}

// Load parses and validates the provided buffer b as a config body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
