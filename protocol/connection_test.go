// connection_test.go - Tests for the connection lifecycle.
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
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veilchat/veilchat/core/log"
	"github.com/veilchat/veilchat/protocol/commands"
)

// fakeTransport records the frames written to it.
type fakeTransport struct {
	sync.Mutex

	frames   [][]byte
	isClosed bool
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.Lock()
	defer t.Unlock()
	t.frames = append(t.frames, append([]byte{}, p...))
	return len(p), nil
}

func (t *fakeTransport) Close() error {
	t.Lock()
	defer t.Unlock()
	t.isClosed = true
	return nil
}

func (t *fakeTransport) lastCommand(tb testing.TB) commands.Command {
	t.Lock()
	defer t.Unlock()
	require.NotEmpty(tb, t.frames, "no frames written to transport")
	cmd, err := commands.FromBytes(t.frames[len(t.frames)-1])
	require.NoError(tb, err)
	return cmd
}

func testLogBackend(t *testing.T) *log.Backend {
	backend, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	return backend
}

func testConnection(t *testing.T) (*Connection, *fakeTransport) {
	tr := new(fakeTransport)
	return NewConnection(tr, CanonicalPeerIdentity("EXAMPLEabc123"), testLogBackend(t)), tr
}

func TestPeerIdentityCanonicalization(t *testing.T) {
	require := require.New(t)

	id := CanonicalPeerIdentity("EXAMPLEabc123")
	require.Equal(PeerIdentity("exampleabc123.onion"), id)
	require.True(id.Valid())
	require.Equal("exampleabc123", id.SettingsKey())

	require.Equal(id, CanonicalPeerIdentity("exampleabc123.onion"))

	require.False(PeerIdentity("").Valid())
	require.False(PeerIdentity(".onion").Valid())
	require.False(PeerIdentity("noonionsuffix").Valid())
	require.False(PeerIdentity("UPPER.onion").Valid())
}

func TestConnectionClaimOnce(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	require.Equal(PurposeUnknown, c.Purpose())
	require.Nil(c.Owner())

	ownerA, ownerB := new(int), new(int)
	require.NoError(c.Claim(ownerA, PurposeInboundRequest))
	require.Equal(PurposeInboundRequest, c.Purpose())
	require.Equal(ownerA, c.Owner())

	// The second claim fails and must not alter the first.
	err := c.Claim(ownerB, PurposeKnownContact)
	require.ErrorIs(err, ErrPurposeAlreadySet)
	require.Equal(PurposeInboundRequest, c.Purpose())
	require.Equal(ownerA, c.Owner())
}

func TestConnectionClaimValidation(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	require.Error(c.Claim(new(int), PurposeUnknown), "claiming as Unknown is not a transition")

	require.NoError(c.Close())
	require.ErrorIs(c.Claim(new(int), PurposeInboundRequest), ErrConnectionClosed)
}

func TestConnectionTakeOwnership(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	ownerA, ownerB := new(int), new(int)
	require.NoError(c.Claim(ownerA, PurposeInboundRequest))

	c.TakeOwnership(ownerB)
	require.Equal(ownerB, c.Owner(), "explicit handoff changes the owner")
	require.Equal(PurposeInboundRequest, c.Purpose(), "handoff leaves the purpose alone")
}

func TestConnectionCloseInvalidatesChannels(t *testing.T) {
	require := require.New(t)

	c, tr := testConnection(t)
	ch, err := c.OpenChannel(ChannelContactRequest)
	require.NoError(err)
	require.True(ch.IsOpen())

	invalidated := false
	ch.OnInvalidated(func() {
		invalidated = true
		require.False(ch.IsOpen(), "channel is invalidated before its hook runs")
	})

	closed := false
	c.OnClosed(func() { closed = true })

	require.NoError(c.Close())
	require.True(invalidated, "closing the connection invalidates its channels")
	require.True(closed)
	require.True(tr.isClosed)
	require.False(c.IsConnected())
	require.Nil(c.Channel(ChannelContactRequest))

	// Close is idempotent.
	require.NoError(c.Close())
}

func TestConnectionChannelDedup(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	_, err := c.OpenChannel(ChannelContactRequest)
	require.NoError(err)
	_, err = c.OpenChannel(ChannelContactRequest)
	require.ErrorIs(err, ErrChannelExists)

	c2, _ := testConnection(t)
	require.NoError(c2.Claim(new(int), PurposeKnownContact))
	_, err = c2.OpenChannel(ChannelChat)
	require.NoError(err)
	_, err = c2.OpenChannel(ChannelChat)
	require.ErrorIs(err, ErrChannelExists)
}

func TestConnectionChannelPurposeGating(t *testing.T) {
	require := require.New(t)

	// Chat is only spoken between established contacts.
	c, _ := testConnection(t)
	_, err := c.OpenChannel(ChannelChat)
	require.ErrorIs(err, ErrChannelNotAllowed, "chat channel on an unclaimed connection")

	require.NoError(c.Claim(new(int), PurposeInboundRequest))
	_, err = c.OpenChannel(ChannelChat)
	require.ErrorIs(err, ErrChannelNotAllowed, "chat channel on an inbound request connection")
	_, err = c.OpenChannel(ChannelContactRequest)
	require.NoError(err, "contact request channel on an inbound request connection")

	// A connection claimed by an established contact never accepts a new
	// contact request.
	c2, _ := testConnection(t)
	require.NoError(c2.Claim(new(int), PurposeKnownContact))
	_, err = c2.OpenChannel(ChannelContactRequest)
	require.ErrorIs(err, ErrChannelNotAllowed, "contact request channel on a known contact connection")
	_, err = c2.OpenChannel(ChannelChat)
	require.NoError(err)
}

func TestConnectionChannelCreatedHook(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	var seen []*Channel
	c.OnChannelCreated(func(ch *Channel) { seen = append(seen, ch) })

	ch, err := c.OpenChannel(ChannelContactRequest)
	require.NoError(err)
	require.Equal([]*Channel{ch}, seen)
}

func TestChannelInvalidateStandalone(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	require.NoError(c.Claim(new(int), PurposeKnownContact))
	ch, err := c.OpenChannel(ChannelChat)
	require.NoError(err)

	count := 0
	ch.OnInvalidated(func() { count++ })

	ch.Invalidate()
	ch.Invalidate()
	require.Equal(1, count, "invalidation hooks fire once")
	require.Nil(c.Channel(ChannelChat), "invalidated channel leaves the connection's set")
	require.True(c.IsConnected(), "a channel closing on its own leaves the connection up")

	require.ErrorIs(ch.SendCommand(&commands.ContactResponse{}), ErrChannelInvalidated)
}

func TestContactRequestChannelResponses(t *testing.T) {
	require := require.New(t)

	c, tr := testConnection(t)
	ch, err := c.OpenChannel(ChannelContactRequest)
	require.NoError(err)

	crc, err := NewContactRequestChannel(ch)
	require.NoError(err)

	var received *ContactRequestChannel
	crc.OnRequestReceived(func(c *ContactRequestChannel) { received = c })

	ch.HandleFrame((&commands.ContactRequest{Nickname: "Alice", Message: "hi"}).ToBytes())
	require.Equal(crc, received)
	require.Equal("Alice", crc.Nickname())
	require.Equal("hi", crc.Message())

	require.NoError(crc.SendResponse(commands.ResponsePending))
	require.True(ch.IsOpen(), "Pending leaves the channel open")

	require.NoError(crc.SendResponse(commands.ResponseAccepted))
	require.False(ch.IsOpen(), "a terminal response closes the channel")
	resp := tr.lastCommand(t).(*commands.ContactResponse)
	require.Equal(commands.ResponseAccepted, resp.Status)

	require.ErrorIs(crc.SendResponse(commands.ResponseRejected), ErrResponseFinished)
}

func TestContactRequestChannelKindCheck(t *testing.T) {
	require := require.New(t)

	c, _ := testConnection(t)
	require.NoError(c.Claim(new(int), PurposeKnownContact))
	ch, err := c.OpenChannel(ChannelChat)
	require.NoError(err)

	_, err = NewContactRequestChannel(ch)
	require.Error(err)
	_, err = NewChatChannel(ch)
	require.NoError(err)
}

func TestChatChannel(t *testing.T) {
	require := require.New(t)

	c, tr := testConnection(t)
	require.NoError(c.Claim(new(int), PurposeKnownContact))
	ch, err := c.OpenChannel(ChannelChat)
	require.NoError(err)

	cc, err := NewChatChannel(ch)
	require.NoError(err)

	var got *commands.ChatMessage
	cc.OnMessageReceived(func(m *commands.ChatMessage) { got = m })

	msg, _ := commands.NewChatMessage(time.Now(), "hello")
	ch.HandleFrame(msg.ToBytes())
	require.NotNil(got)
	require.Equal("hello", got.Text)

	truncated, err := cc.SendMessage(time.Now(), "hey yourself")
	require.NoError(err)
	require.False(truncated)
	sent := tr.lastCommand(t).(*commands.ChatMessage)
	require.Equal("hey yourself", sent.Text)

	// Malformed frames are dropped without reaching the handler.
	got = nil
	ch.HandleFrame([]byte{0xFF, 0xFF})
	require.Nil(got)
}
