// main.go - veilchat client daemon.
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

// veilchatd runs the veilchat protocol core as a standalone daemon: it
// loads the persisted incoming contact requests, accepts connections from
// the hidden service transport, and surfaces manager events.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veilchat/veilchat/config"
	"github.com/veilchat/veilchat/contacts"
	"github.com/veilchat/veilchat/core/log"
	"github.com/veilchat/veilchat/protocol"
	"github.com/veilchat/veilchat/settings"
)

const settingsFile = "settings.db"

// emptyGateway is the roster stand-in used until an application embeds
// the core with a real contact store.  It knows no contacts and cannot
// create any, so requests can only be recorded or rejected.
type emptyGateway struct{}

func (emptyGateway) LookupHostname(protocol.PeerIdentity) contacts.Contact { return nil }

func (emptyGateway) AddContact(string) (contacts.Contact, error) {
	return nil, errors.New("veilchatd: no roster layer is configured")
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "veilchatd",
		Short: "veilchat client daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to the daemon configuration file (TOML format)")
	cmd.MarkFlagRequired("config")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %v", err)
	}
	logger := logBackend.GetLogger("veilchatd")

	store, err := settings.OpenBolt(filepath.Join(cfg.DataDir, settingsFile))
	if err != nil {
		return fmt.Errorf("failed to open settings store: %v", err)
	}
	defer store.Close()

	manager := contacts.NewIncomingRequestManager(store, emptyGateway{}, logBackend)
	defer manager.Halt()
	if err = manager.Load(); err != nil {
		return fmt.Errorf("failed to load persisted contact requests: %v", err)
	}

	go func() {
		for ev := range manager.EventSink {
			logger.Noticef("%v", ev)
		}
	}()

	logger.Noticef("veilchatd is up; transport endpoint %v", cfg.Tor.SocksAddress)

	haltCh := make(chan os.Signal, 1)
	signal.Notify(haltCh, os.Interrupt, syscall.SIGTERM)
	<-haltCh
	logger.Notice("Shutting down gracefully.")
	return nil
}
