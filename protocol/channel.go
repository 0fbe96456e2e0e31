// channel.go - Typed sub-protocol channels.
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

package protocol

import (
	"sync"

	"github.com/veilchat/veilchat/protocol/commands"
)

// ChannelKind tags the sub-protocol spoken on a channel.  The set of
// kinds is closed; a channel's kind is resolved once when the channel is
// created.
type ChannelKind uint8

const (
	// ChannelContactRequest carries a contact request handshake.
	ChannelContactRequest ChannelKind = iota

	// ChannelChat carries chat messages between established contacts.
	ChannelChat
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelContactRequest:
		return "contact-request"
	case ChannelChat:
		return "chat"
	default:
		return "invalid"
	}
}

// Channel is a logical, typed sub-protocol instance multiplexed over a
// Connection.  Channels never outlive their connection: when the
// connection closes, every channel is invalidated first.
type Channel struct {
	mu sync.Mutex

	kind ChannelKind
	conn *Connection

	open             bool
	handler          func(commands.Command)
	invalidatedHooks []func()
}

func newChannel(kind ChannelKind, conn *Connection) *Channel {
	return &Channel{
		kind: kind,
		conn: conn,
		open: true,
	}
}

// Kind returns the channel's sub-protocol kind.
func (ch *Channel) Kind() ChannelKind {
	return ch.kind
}

// Connection returns the parent connection.  The channel borrows the
// connection; it never owns it.
func (ch *Channel) Connection() *Connection {
	return ch.conn
}

// IsOpen returns true until the channel is invalidated.
func (ch *Channel) IsOpen() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.open
}

// OnInvalidated registers a hook invoked once when the channel transitions
// to invalidated.
func (ch *Channel) OnInvalidated(hook func()) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.invalidatedHooks = append(ch.invalidatedHooks, hook)
}

// setHandler installs the typed wrapper's command handler.
func (ch *Channel) setHandler(handler func(commands.Command)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.handler = handler
}

// Invalidate transitions the channel to invalidated and runs the
// invalidation hooks synchronously.  Invalidate is idempotent; it is
// called by the peer closing the channel, by a local close, or by the
// parent connection closing.
func (ch *Channel) Invalidate() {
	ch.mu.Lock()
	if !ch.open {
		ch.mu.Unlock()
		return
	}
	ch.open = false
	hooks := ch.invalidatedHooks
	ch.invalidatedHooks = nil
	ch.mu.Unlock()

	ch.conn.dropChannel(ch)
	for _, hook := range hooks {
		hook()
	}
}

// SendCommand serializes cmd and writes it to the transport.
func (ch *Channel) SendCommand(cmd commands.Command) error {
	ch.mu.Lock()
	open := ch.open
	ch.mu.Unlock()
	if !open {
		return ErrChannelInvalidated
	}
	return ch.conn.send(cmd.ToBytes())
}

// HandleFrame decodes one inbound command frame and dispatches it to the
// channel's handler.  A frame that fails to decode is logged and dropped;
// there is no protocol-level NACK for malformed commands.
func (ch *Channel) HandleFrame(frame []byte) {
	ch.mu.Lock()
	open := ch.open
	handler := ch.handler
	ch.mu.Unlock()
	if !open {
		return
	}

	cmd, err := commands.FromBytes(frame)
	if err != nil {
		ch.conn.log.Debugf("Dropping malformed command on %v channel: %v", ch.kind, err)
		return
	}
	if handler != nil {
		handler(cmd)
	}
}
