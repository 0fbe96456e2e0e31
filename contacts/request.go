// request.go - Incoming contact request state machine.
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

package contacts

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/veilchat/veilchat/protocol"
	"github.com/veilchat/veilchat/protocol/commands"
	"github.com/veilchat/veilchat/settings"
)

// RemoteSecretLength is the size of the peer-supplied secret reserved for
// a protocol extension.
const RemoteSecretLength = 16

// IncomingContactRequest is a pending, unaccepted offer from an unknown
// peer to become a contact.  The peer identity is immutable once the
// request exists; everything else may be refreshed when the peer
// re-announces the request.
type IncomingContactRequest struct {
	mu sync.Mutex

	manager *IncomingRequestManager

	hostname protocol.PeerIdentity
	nickname string
	message  string

	requestDate     time.Time
	lastRequestDate time.Time

	remoteSecret []byte

	conn    *protocol.Connection
	channel *protocol.ContactRequestChannel
}

func newIncomingContactRequest(m *IncomingRequestManager, hostname protocol.PeerIdentity) *IncomingContactRequest {
	r := &IncomingContactRequest{
		manager:  m,
		hostname: hostname,
	}
	m.log.Debugf("Created contact request from %v", hostname)
	return r
}

// Hostname returns the requesting peer's identity.
func (r *IncomingContactRequest) Hostname() protocol.PeerIdentity {
	return r.hostname
}

// Nickname returns the display name supplied by the peer.
func (r *IncomingContactRequest) Nickname() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nickname
}

// Message returns the free text supplied by the peer.
func (r *IncomingContactRequest) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// RequestDate returns the first-seen timestamp, immutable once assigned.
func (r *IncomingContactRequest) RequestDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestDate
}

// LastRequestDate returns the timestamp of the most recent announcement.
func (r *IncomingContactRequest) LastRequestDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRequestDate
}

// HasActiveConnection returns true while a live connection is bound to
// the request.
func (r *IncomingContactRequest) HasActiveConnection() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// SetRemoteSecret records the peer-supplied secret reserved for a
// protocol extension.
func (r *IncomingContactRequest) SetRemoteSecret(secret []byte) error {
	if len(secret) != RemoteSecretLength {
		return fmt.Errorf("contacts: remote secret must be %d bytes, not %d", RemoteSecretLength, len(secret))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remoteSecret = append([]byte{}, secret...)
	return nil
}

// RemoteSecret returns the peer-supplied secret, or nil.
func (r *IncomingContactRequest) RemoteSecret() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remoteSecret
}

func (r *IncomingContactRequest) settingsKey() string {
	return fmt.Sprintf("contactRequests.%s", r.hostname.SettingsKey())
}

func (r *IncomingContactRequest) load() error {
	store := r.manager.store
	key := r.settingsKey()

	nickname, err := settings.ReadString(store, key+".nickname")
	if err != nil {
		return err
	}
	message, err := settings.ReadString(store, key+".message")
	if err != nil {
		return err
	}
	requestDate, err := settings.ReadTime(store, key+".requestDate")
	if err != nil {
		return err
	}
	lastRequestDate, err := settings.ReadTime(store, key+".lastRequestDate")
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.nickname = nickname
	r.message = message
	r.requestDate = requestDate
	r.lastRequestDate = lastRequestDate
	r.mu.Unlock()
	return nil
}

func (r *IncomingContactRequest) save() error {
	store := r.manager.store
	key := r.settingsKey()

	r.mu.Lock()
	if r.requestDate.IsZero() {
		r.requestDate = time.Now()
		r.lastRequestDate = r.requestDate
	}
	nickname := r.nickname
	message := r.message
	requestDate := r.requestDate
	lastRequestDate := r.lastRequestDate
	r.mu.Unlock()

	if err := settings.WriteString(store, key+".nickname", nickname); err != nil {
		return err
	}
	if err := settings.WriteString(store, key+".message", message); err != nil {
		return err
	}
	if err := settings.WriteTime(store, key+".requestDate", requestDate); err != nil {
		return err
	}
	return settings.WriteTime(store, key+".lastRequestDate", lastRequestDate)
}

func (r *IncomingContactRequest) purgeSettings() error {
	return r.manager.store.Undefine(r.settingsKey())
}

// Renew refreshes the last announcement timestamp.  The first-seen
// timestamp never changes once assigned.
func (r *IncomingContactRequest) Renew() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRequestDate = time.Now()
}

// SetChannel binds a contact-request channel, and with it the channel's
// connection, to the request.  At most one live connection is bound at a
// time: a previously bound connection is closed, synchronously, before
// the new one is considered.  The new connection is claimed with
// PurposeInboundRequest; if the claim fails the new connection is closed
// and the bind aborts, leaving the request transiently without a
// connection.
func (r *IncomingContactRequest) SetChannel(channel *protocol.ContactRequestChannel) error {
	conn := channel.Connection()

	r.mu.Lock()
	old := r.conn
	r.mu.Unlock()
	if old != nil {
		r.manager.log.Debugf("Replacing connection on a contact request from %v; old connection is %v old", r.hostname, old.Age())
		old.Close()
	}

	// Close the connection when the channel goes away while the request
	// still owns it, so an authenticated session does not linger after
	// its sub-protocol ended.
	channel.Channel().OnInvalidated(func() {
		r.mu.Lock()
		cur := r.conn
		r.mu.Unlock()
		if cur == conn && cur.Purpose() == protocol.PurposeInboundRequest && cur.Owner() == r {
			r.manager.log.Debugf("Closing connection attached to a contact request because its channel closed")
			cur.Close()
		}
	})

	r.manager.log.Debugf("Assigning connection to contact request from %v", r.hostname)
	if err := conn.Claim(r, protocol.PurposeInboundRequest); err != nil {
		r.manager.log.Warningf("Failed to claim connection for contact request from %v: %v; killing connection", r.hostname, err)
		conn.Close()
		return err
	}

	conn.OnClosed(func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
			r.channel = nil
		}
		r.mu.Unlock()
	})

	r.mu.Lock()
	r.conn = conn
	r.channel = channel
	r.nickname = channel.Nickname()
	r.message = channel.Message()
	r.mu.Unlock()
	return nil
}

// Accept resolves the request by turning it into an established contact.
// When user is nil a contact is created through the gateway using the
// request's nickname, which must be non-empty.  A live connection is
// handed to the contact together with a final Accepted response; the
// request is then purged from storage and removed from the manager.
func (r *IncomingContactRequest) Accept(user Contact) error {
	r.manager.log.Noticef("Accepting contact request from %v", r.hostname)

	if user == nil {
		nickname := r.Nickname()
		if nickname == "" {
			return errors.New("contacts: cannot accept a request without a nickname")
		}
		var err error
		user, err = r.manager.contacts.AddContact(nickname)
		if err != nil {
			return fmt.Errorf("contacts: failed to create contact: %v", err)
		}
		user.SetHostname(r.hostname)
	}

	r.mu.Lock()
	conn := r.conn
	channel := r.channel
	r.mu.Unlock()

	if conn != nil {
		if channel != nil && channel.Channel().IsOpen() {
			// The channel closes itself after the terminal response; the
			// contact must claim the connection before that happens so
			// the invalidation hook leaves it alone.
			user.AssignConnection(conn)
			if err := channel.SendResponse(commands.ResponseAccepted); err != nil {
				r.manager.log.Warningf("Failed to send accepted response to %v: %v", r.hostname, err)
			}
			if conn.Owner() != user {
				r.manager.log.Errorf("BUG: contact did not claim the connection from an accepted request")
				conn.Close()
			}
		} else {
			conn.Close()
		}
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
			r.channel = nil
		}
		r.mu.Unlock()
	}

	if err := r.purgeSettings(); err != nil {
		r.manager.log.Warningf("Failed to purge persisted request from %v: %v", r.hostname, err)
	}
	r.manager.Remove(r)
	return nil
}

// Reject resolves the request by refusing it: a final Rejected response
// is sent on any live channel, the connection is closed, the peer is
// blacklisted, and the request is purged from storage and removed from
// the manager.  The entity must not be used afterwards.
func (r *IncomingContactRequest) Reject() error {
	r.manager.log.Noticef("Rejecting contact request from %v", r.hostname)

	r.mu.Lock()
	conn := r.conn
	channel := r.channel
	r.mu.Unlock()

	if conn != nil {
		if channel != nil && channel.Channel().IsOpen() {
			if err := channel.SendResponse(commands.ResponseRejected); err != nil {
				r.manager.log.Debugf("Failed to send rejected response to %v: %v", r.hostname, err)
			}
		}
		conn.Close()
	}

	if err := r.purgeSettings(); err != nil {
		r.manager.log.Warningf("Failed to purge persisted request from %v: %v", r.hostname, err)
	}
	if err := r.manager.AddRejectedHost(r.hostname); err != nil {
		r.manager.log.Warningf("Failed to blacklist %v: %v", r.hostname, err)
	}
	r.manager.Remove(r)
	return nil
}
