// manager.go - Incoming contact request manager.
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

// Package contacts implements the incoming contact request handshake: the
// request entities, their manager with deduplication and blacklist
// enforcement, and the events surfaced to the application layer.
package contacts

import (
	"sync"

	"gopkg.in/eapache/channels.v1"
	"gopkg.in/op/go-logging.v1"

	"github.com/veilchat/veilchat/core/log"
	"github.com/veilchat/veilchat/core/worker"
	"github.com/veilchat/veilchat/protocol"
	"github.com/veilchat/veilchat/protocol/commands"
	"github.com/veilchat/veilchat/settings"
)

const (
	contactRequestsKey   = "contactRequests"
	hostnameBlacklistKey = "hostnameBlacklist"
)

// IncomingRequestManager owns the set of live incoming contact requests,
// keyed uniquely by peer identity, and the persistent blacklist of peers
// barred from creating new requests.
type IncomingRequestManager struct {
	worker.Worker

	mu       sync.RWMutex
	requests []*IncomingContactRequest

	store    settings.Store
	contacts ContactGateway
	log      *logging.Logger

	eventCh channels.Channel

	// EventSink delivers manager events in emission order.  It is closed
	// when the manager halts.
	EventSink chan Event
}

// NewIncomingRequestManager creates a manager bound to the given settings
// store and roster gateway, and starts its event delivery worker.
func NewIncomingRequestManager(store settings.Store, contacts ContactGateway, logBackend *log.Backend) *IncomingRequestManager {
	m := &IncomingRequestManager{
		store:     store,
		contacts:  contacts,
		log:       logBackend.GetLogger("contacts/requests"),
		eventCh:   channels.NewInfiniteChannel(),
		EventSink: make(chan Event),
	}
	m.Go(m.eventSinkWorker)
	return m
}

func (m *IncomingRequestManager) eventSinkWorker() {
	defer func() {
		m.log.Debug("Event sink worker terminating gracefully.")
		close(m.EventSink)
	}()
	for {
		var event Event
		select {
		case <-m.HaltCh():
			return
		case ev := <-m.eventCh.Out():
			event = ev.(Event)
		}
		select {
		case m.EventSink <- event:
		case <-m.HaltCh():
			return
		}
	}
}

func (m *IncomingRequestManager) emit(event Event) {
	m.eventCh.In() <- event
}

// Load reconstructs the live set from the persisted request records,
// emitting one added-event per restored request.
func (m *IncomingRequestManager) Load() error {
	names, err := m.store.Keys(contactRequestsKey)
	if err != nil {
		return err
	}

	for _, name := range names {
		hostname := protocol.CanonicalPeerIdentity(name)
		request := newIncomingContactRequest(m, hostname)
		if err := request.load(); err != nil {
			m.log.Warningf("Skipping unreadable contact request record %q: %v", name, err)
			continue
		}

		m.mu.Lock()
		m.requests = append(m.requests, request)
		m.mu.Unlock()
		m.emit(&RequestAddedEvent{Request: request})
	}
	return nil
}

// Requests returns a snapshot of the live set in insertion order.
func (m *IncomingRequestManager) Requests() []*IncomingContactRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*IncomingContactRequest{}, m.requests...)
}

// RequestFromHostname returns the live request for the given identity, or
// nil.  The live set stays small, so a linear scan is fine.
func (m *IncomingRequestManager) RequestFromHostname(hostname protocol.PeerIdentity) *IncomingContactRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.hostname == hostname {
			return r
		}
	}
	return nil
}

// Remove drops the request from the live set if present.  Removing an
// already-absent request is a no-op for the set.
func (m *IncomingRequestManager) Remove(request *IncomingContactRequest) {
	m.mu.Lock()
	removed := false
	for i, r := range m.requests {
		if r == request {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.emit(&RequestRemovedEvent{Request: request})
	}
}

// AddRejectedHost adds the identity to the persistent blacklist.  The
// insert deduplicates.
func (m *IncomingRequestManager) AddRejectedHost(hostname protocol.PeerIdentity) error {
	return m.store.ListAppend(hostnameBlacklistKey, hostname.String())
}

// IsHostnameRejected reports whether the identity is blacklisted.
func (m *IncomingRequestManager) IsHostnameRejected(hostname protocol.PeerIdentity) bool {
	rejected, err := m.store.ListContains(hostnameBlacklistKey, hostname.String())
	if err != nil {
		m.log.Warningf("Failed to read blacklist: %v", err)
		return false
	}
	return rejected
}

// HandleConnection attaches the manager to a new transport connection, so
// that any contact-request channel opened on it reaches the request
// handshake.
func (m *IncomingRequestManager) HandleConnection(conn *protocol.Connection) {
	conn.OnChannelCreated(func(ch *protocol.Channel) {
		if ch.Kind() != protocol.ChannelContactRequest {
			return
		}
		channel, err := protocol.NewContactRequestChannel(ch)
		if err != nil {
			m.log.Errorf("BUG: failed to wrap contact-request channel: %v", err)
			return
		}
		channel.OnRequestReceived(m.requestReceived)
	})
}

// requestReceived handles a complete contact request delivered on a
// channel.  Validation order: transport authentication, blacklist, known
// contact filter, then create-or-renew.
func (m *IncomingRequestManager) requestReceived(channel *protocol.ContactRequestChannel) {
	hostname := channel.Connection().Identity()
	if !hostname.Valid() {
		m.log.Errorf("BUG: incoming contact request on a connection that isn't authenticated")
		if err := channel.SendResponse(commands.ResponseError); err != nil {
			m.log.Debugf("Failed to send error response: %v", err)
		}
		return
	}

	if m.IsHostnameRejected(hostname) {
		m.log.Debugf("Rejecting contact request due to a blacklist match for %v", hostname)
		if err := channel.SendResponse(commands.ResponseRejected); err != nil {
			m.log.Debugf("Failed to send rejected response: %v", err)
		}
		return
	}

	if m.contacts.LookupHostname(hostname) != nil {
		// Requests from known contacts are implicitly accepted at a
		// different level and must never reach this stage.
		m.log.Errorf("BUG: incoming contact request matching a known contact")
		if err := channel.SendResponse(commands.ResponseError); err != nil {
			m.log.Debugf("Failed to send error response: %v", err)
		}
		return
	}

	request := m.RequestFromHostname(hostname)
	isNew := request == nil
	if isNew {
		request = newIncomingContactRequest(m, hostname)
	} else {
		request.Renew()
	}
	if err := request.SetChannel(channel); err != nil {
		m.log.Warningf("Failed to bind connection to contact request from %v: %v", hostname, err)
	}

	if isNew {
		m.log.Debugf("Recording new incoming contact request from %v", hostname)
	} else {
		m.log.Debugf("Recording renewed incoming contact request from %v", hostname)
	}

	if err := request.save(); err != nil {
		m.log.Warningf("Failed to persist contact request from %v: %v", hostname, err)
	}
	if err := channel.SendResponse(commands.ResponsePending); err != nil {
		m.log.Debugf("Failed to send pending response to %v: %v", hostname, err)
	}

	if isNew {
		m.mu.Lock()
		m.requests = append(m.requests, request)
		m.mu.Unlock()
		m.emit(&RequestAddedEvent{Request: request})
	} else {
		m.emit(&RequestChangedEvent{Request: request})
	}
}
