// chat_channel.go - Chat sub-protocol channel.
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
	"time"

	"github.com/veilchat/veilchat/protocol/commands"
)

// ChatChannel is the typed wrapper around a chat channel between
// established contacts.
type ChatChannel struct {
	mu sync.Mutex

	ch *Channel

	messageReceived func(*commands.ChatMessage)
}

// NewChatChannel wraps ch, which must be of kind ChannelChat.
func NewChatChannel(ch *Channel) (*ChatChannel, error) {
	if ch.Kind() != ChannelChat {
		return nil, fmt.Errorf("protocol: cannot wrap a %v channel as chat", ch.Kind())
	}
	c := &ChatChannel{ch: ch}
	ch.setHandler(c.handleCommand)
	return c, nil
}

// Channel returns the underlying channel.
func (c *ChatChannel) Channel() *Channel {
	return c.ch
}

// OnMessageReceived registers the hook invoked for every decoded chat
// message.
func (c *ChatChannel) OnMessageReceived(hook func(*commands.ChatMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageReceived = hook
}

func (c *ChatChannel) handleCommand(cmd commands.Command) {
	msg, ok := cmd.(*commands.ChatMessage)
	if !ok {
		c.ch.Connection().log.Debugf("Ignoring unexpected %T on chat channel", cmd)
		return
	}

	c.mu.Lock()
	hook := c.messageReceived
	c.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
}

// SendMessage encodes and sends a chat message composed at timestamp.
// The returned flag reports whether the text was truncated to fit the
// command body.
func (c *ChatChannel) SendMessage(timestamp time.Time, text string) (bool, error) {
	msg, truncated := commands.NewChatMessage(timestamp, text)
	if truncated {
		c.ch.Connection().log.Warningf("Chat message truncated to %d bytes before sending", commands.MaxChatTextLength)
	}
	return truncated, c.ch.SendCommand(msg)
}
