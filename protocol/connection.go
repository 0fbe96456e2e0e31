// connection.go - Authenticated peer connection lifecycle.
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

// Package protocol implements the peer-to-peer protocol core: the
// connection and channel lifecycle, the single-assignment connection
// purpose, and the typed sub-protocol channels multiplexed over an
// authenticated hidden service transport session.
//
// The transport itself (Tor, the link handshake, and the authentication
// of the remote hidden service) is external; connections are handed to
// this package already established, and the authenticated peer identity
// is set by the transport once its authentication completes.
package protocol

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/veilchat/veilchat/core/log"
)

// Purpose is the single-assignment role of a connection.  It starts as
// PurposeUnknown and may transition exactly once to one of the other
// values; the component performing that transition becomes the
// connection's sole logical owner.
type Purpose int

const (
	// PurposeUnknown is the initial, transport-assigned purpose of every
	// connection.  Only a connection with this purpose may be claimed.
	PurposeUnknown Purpose = iota

	// PurposeInboundRequest marks a connection owned by an incoming
	// contact request.
	PurposeInboundRequest

	// PurposeOutboundRequest marks a connection owned by an outgoing
	// contact request.
	PurposeOutboundRequest

	// PurposeKnownContact marks a connection owned by an established
	// contact.
	PurposeKnownContact
)

func (p Purpose) String() string {
	switch p {
	case PurposeUnknown:
		return "Unknown"
	case PurposeInboundRequest:
		return "InboundRequest"
	case PurposeOutboundRequest:
		return "OutboundRequest"
	case PurposeKnownContact:
		return "KnownContact"
	default:
		return "Invalid"
	}
}

var connID uint64

// Connection is a single authenticated transport session to a peer.  It
// owns every channel multiplexed over it; closing the connection
// synchronously invalidates all of them.
type Connection struct {
	sync.Mutex

	t   io.ReadWriteCloser
	log *logging.Logger

	identity  PeerIdentity
	purpose   Purpose
	owner     interface{}
	createdAt time.Time

	channels     map[ChannelKind]*Channel
	channelHooks []func(*Channel)
	closedHooks  []func()

	isClosed bool
}

// NewConnection wraps an established transport session.  The identity may
// be empty if the transport's authentication has not completed yet.
func NewConnection(t io.ReadWriteCloser, identity PeerIdentity, logBackend *log.Backend) *Connection {
	c := &Connection{
		t:         t,
		identity:  identity,
		createdAt: time.Now(),
		channels:  make(map[ChannelKind]*Channel),
	}
	id := atomic.AddUint64(&connID, 1)
	c.log = logBackend.GetLogger(fmt.Sprintf("conn:%d", id))
	return c
}

// Identity returns the authenticated peer identity, or the empty identity
// if the transport has not authenticated the peer.
func (c *Connection) Identity() PeerIdentity {
	c.Lock()
	defer c.Unlock()
	return c.identity
}

// SetAuthenticatedIdentity records the peer identity established by the
// transport's authentication mechanism.
func (c *Connection) SetAuthenticatedIdentity(identity PeerIdentity) {
	c.Lock()
	defer c.Unlock()
	c.identity = identity
}

// Age returns the elapsed time since the connection was established.
func (c *Connection) Age() time.Duration {
	return time.Since(c.createdAt)
}

// Purpose returns the connection's current purpose.
func (c *Connection) Purpose() Purpose {
	c.Lock()
	defer c.Unlock()
	return c.purpose
}

// Owner returns the connection's current logical owner, or nil if it is
// still held by the transport registry.
func (c *Connection) Owner() interface{} {
	c.Lock()
	defer c.Unlock()
	return c.owner
}

// Claim transitions the connection's purpose from PurposeUnknown to p and
// records owner as the sole logical owner.  It fails with
// ErrPurposeAlreadySet if the purpose was claimed before; the first claim
// is left untouched and the caller must close any connection it failed to
// claim.
func (c *Connection) Claim(owner interface{}, p Purpose) error {
	c.Lock()
	defer c.Unlock()

	if c.isClosed {
		return ErrConnectionClosed
	}
	if p == PurposeUnknown {
		return fmt.Errorf("protocol: cannot claim a connection as %v", p)
	}
	if c.purpose != PurposeUnknown {
		c.log.Warningf("Refusing to claim connection as %v: already %v", p, c.purpose)
		return ErrPurposeAlreadySet
	}

	c.purpose = p
	c.owner = owner
	return nil
}

// TakeOwnership hands the connection, purpose unchanged, to a new logical
// owner.  This is the explicit handoff used when an accepted contact
// request transfers its connection to the resulting contact; callers
// verify the transfer via Owner().
func (c *Connection) TakeOwnership(owner interface{}) {
	c.Lock()
	defer c.Unlock()
	c.owner = owner
}

// OnChannelCreated registers a hook invoked for every channel subsequently
// opened on the connection.
func (c *Connection) OnChannelCreated(hook func(*Channel)) {
	c.Lock()
	defer c.Unlock()
	c.channelHooks = append(c.channelHooks, hook)
}

// OnClosed registers a hook invoked once when the connection closes.
func (c *Connection) OnClosed(hook func()) {
	c.Lock()
	defer c.Unlock()
	c.closedHooks = append(c.closedHooks, hook)
}

// kindAllowed gates channel creation on the connection's purpose.  A
// contact request may only arrive before the connection belongs to an
// established contact; chat is only spoken between established contacts.
func kindAllowed(kind ChannelKind, purpose Purpose) bool {
	switch kind {
	case ChannelContactRequest:
		return purpose == PurposeUnknown || purpose == PurposeInboundRequest
	case ChannelChat:
		return purpose == PurposeKnownContact
	default:
		return false
	}
}

// OpenChannel opens a channel of the given kind over the connection.  At
// most one channel of each kind may be open at a time, and the
// connection's purpose must admit the kind.
func (c *Connection) OpenChannel(kind ChannelKind) (*Channel, error) {
	c.Lock()
	if c.isClosed {
		c.Unlock()
		return nil, ErrConnectionClosed
	}
	if !kindAllowed(kind, c.purpose) {
		c.log.Warningf("Refusing %v channel on a %v connection", kind, c.purpose)
		c.Unlock()
		return nil, ErrChannelNotAllowed
	}
	if _, ok := c.channels[kind]; ok {
		c.Unlock()
		return nil, ErrChannelExists
	}

	ch := newChannel(kind, c)
	c.channels[kind] = ch
	hooks := append([]func(*Channel){}, c.channelHooks...)
	c.Unlock()

	c.log.Debugf("Opened %v channel", kind)
	for _, hook := range hooks {
		hook(ch)
	}
	return ch, nil
}

// Channel returns the open channel of the given kind, or nil.
func (c *Connection) Channel(kind ChannelKind) *Channel {
	c.Lock()
	defer c.Unlock()
	return c.channels[kind]
}

// IsConnected returns true until the connection is closed.
func (c *Connection) IsConnected() bool {
	c.Lock()
	defer c.Unlock()
	return !c.isClosed
}

// Close tears the connection down: every channel is invalidated
// synchronously (invalidation hooks run before Close returns), the
// transport is closed, and the closed-hooks fire.  No channel events are
// delivered afterwards.  Close is idempotent and safe to call from
// invalidation hooks.
func (c *Connection) Close() error {
	c.Lock()
	if c.isClosed {
		c.Unlock()
		return nil
	}
	c.isClosed = true

	channels := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	c.channels = make(map[ChannelKind]*Channel)
	closedHooks := c.closedHooks
	c.closedHooks = nil
	c.Unlock()

	for _, ch := range channels {
		ch.Invalidate()
	}

	err := c.t.Close()
	c.log.Debugf("Connection closed after %v", c.Age())

	for _, hook := range closedHooks {
		hook()
	}
	return err
}

// send writes one serialized command frame to the transport.
func (c *Connection) send(frame []byte) error {
	c.Lock()
	if c.isClosed {
		c.Unlock()
		return ErrConnectionClosed
	}
	t := c.t
	c.Unlock()

	_, err := t.Write(frame)
	return err
}

// dropChannel removes a channel invalidated on its own, without the
// connection closing.
func (c *Connection) dropChannel(ch *Channel) {
	c.Lock()
	defer c.Unlock()
	if c.channels[ch.kind] == ch {
		delete(c.channels, ch.kind)
	}
}
