// contact_request_channel.go - Contact request sub-protocol channel.
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
	"fmt"
	"sync"

	"github.com/veilchat/veilchat/protocol/commands"
)

// ContactRequestChannel is the typed wrapper around a contact-request
// channel.  The requesting peer opens the channel and sends a
// ContactRequest command; this side answers with ContactResponse
// commands.  Exactly one terminal response (Accepted, Rejected or Error)
// is sent per channel; Pending may precede it.  The channel closes after
// a terminal response.
type ContactRequestChannel struct {
	mu sync.Mutex

	ch *Channel

	nickname string
	message  string

	requestReceived func(*ContactRequestChannel)
	finished        bool
}

// NewContactRequestChannel wraps ch, which must be of kind
// ChannelContactRequest.
func NewContactRequestChannel(ch *Channel) (*ContactRequestChannel, error) {
	if ch.Kind() != ChannelContactRequest {
		return nil, fmt.Errorf("protocol: cannot wrap a %v channel as contact-request", ch.Kind())
	}
	c := &ContactRequestChannel{ch: ch}
	ch.setHandler(c.handleCommand)
	return c, nil
}

// Channel returns the underlying channel.
func (c *ContactRequestChannel) Channel() *Channel {
	return c.ch
}

// Connection returns the parent connection.
func (c *ContactRequestChannel) Connection() *Connection {
	return c.ch.Connection()
}

// Nickname returns the display name supplied by the requesting peer.
func (c *ContactRequestChannel) Nickname() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nickname
}

// Message returns the free text supplied by the requesting peer.
func (c *ContactRequestChannel) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// OnRequestReceived registers the hook invoked when a complete contact
// request arrives on the channel.
func (c *ContactRequestChannel) OnRequestReceived(hook func(*ContactRequestChannel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestReceived = hook
}

func (c *ContactRequestChannel) handleCommand(cmd commands.Command) {
	switch cmd := cmd.(type) {
	case *commands.ContactRequest:
		c.mu.Lock()
		c.nickname = cmd.Nickname
		c.message = cmd.Message
		hook := c.requestReceived
		c.mu.Unlock()
		if hook != nil {
			hook(c)
		}
	default:
		// The requesting side never sends anything else on this channel.
		c.Connection().log.Debugf("Ignoring unexpected %T on contact-request channel", cmd)
	}
}

// SendResponse sends a response status to the requesting peer.  A
// terminal status closes the channel; attempting to send after a
// terminal status fails with ErrResponseFinished.
func (c *ContactRequestChannel) SendResponse(status commands.ResponseStatus) error {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return ErrResponseFinished
	}
	if status.IsTerminal() {
		c.finished = true
	}
	c.mu.Unlock()

	err := c.ch.SendCommand(&commands.ContactResponse{Status: status})
	if status.IsTerminal() {
		c.ch.Invalidate()
	}
	return err
}
