// commands_test.go - Tests for wire protocol commands.
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

package commands

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChatMessage(t *testing.T) {
	const payload = "A free man must be able to endure it when his fellow men act and live otherwise than he considers proper."

	require := require.New(t)

	cmd, truncated := NewChatMessage(time.Now().Add(-90*time.Second), payload)
	require.False(truncated, "ChatMessage: unexpected truncation")
	require.InDelta(90, int(cmd.TimeDelta), 1, "ChatMessage: time delta")

	b := cmd.ToBytes()
	require.Equal(cmdOverhead+chatMessageBaseLength+len(payload), len(b), "ChatMessage: ToBytes() length")

	c, err := FromBytes(b)
	require.NoError(err, "ChatMessage: FromBytes() failed")
	require.IsType(cmd, c, "ChatMessage: FromBytes() invalid type")

	cmd2 := c.(*ChatMessage)
	require.Equal(cmd.TimeDelta, cmd2.TimeDelta, "ChatMessage: FromBytes() TimeDelta")
	require.Equal(payload, cmd2.Text, "ChatMessage: FromBytes() Text")
}

func TestChatMessageFutureTimestamp(t *testing.T) {
	require := require.New(t)

	cmd, truncated := NewChatMessage(time.Now().Add(time.Hour), "hello")
	require.False(truncated)
	require.Equal(uint32(0), cmd.TimeDelta, "ChatMessage: future timestamps clamp to zero delta")
}

func TestChatMessageTruncation(t *testing.T) {
	require := require.New(t)

	oversized := strings.Repeat("x", MaxChatTextLength+500)
	cmd, truncated := NewChatMessage(time.Now(), oversized)
	require.True(truncated, "ChatMessage: expected truncation")
	require.Len(cmd.Text, MaxChatTextLength, "ChatMessage: truncated text length")

	b := cmd.ToBytes()
	require.Equal(cmdOverhead+MaxBodyLength, len(b), "ChatMessage: truncated ToBytes() length")

	c, err := FromBytes(b)
	require.NoError(err, "ChatMessage: FromBytes() failed")
	require.Equal(oversized[:MaxChatTextLength], c.(*ChatMessage).Text, "ChatMessage: truncated round trip")

	// A hand-built message with oversized text is clamped at encode time
	// as well.
	raw := &ChatMessage{Text: oversized}
	require.Equal(cmdOverhead+MaxBodyLength, len(raw.ToBytes()))
}

func TestChatMessageMalformed(t *testing.T) {
	require := require.New(t)

	// Body shorter than the fixed time delta field.
	b := commandHeader(chatMessage, 2)
	b = append(b, 0x00, 0x00)
	_, err := FromBytes(b)
	require.Error(err, "ChatMessage: truncated body must not decode")
}

func TestContactRequest(t *testing.T) {
	require := require.New(t)

	cmd := &ContactRequest{Nickname: "Alice", Message: "hi"}
	b := cmd.ToBytes()
	require.Equal(cmdOverhead+contactRequestBaseLength+len("Alice")+len("hi"), len(b), "ContactRequest: ToBytes() length")

	c, err := FromBytes(b)
	require.NoError(err, "ContactRequest: FromBytes() failed")
	require.IsType(cmd, c, "ContactRequest: FromBytes() invalid type")

	cmd2 := c.(*ContactRequest)
	require.Equal("Alice", cmd2.Nickname, "ContactRequest: FromBytes() Nickname")
	require.Equal("hi", cmd2.Message, "ContactRequest: FromBytes() Message")
}

func TestContactRequestEmptyFields(t *testing.T) {
	require := require.New(t)

	cmd := &ContactRequest{}
	c, err := FromBytes(cmd.ToBytes())
	require.NoError(err)
	require.Equal("", c.(*ContactRequest).Nickname)
	require.Equal("", c.(*ContactRequest).Message)
}

func TestContactRequestMalformed(t *testing.T) {
	require := require.New(t)

	// Declared nickname length exceeds the body.
	b := commandHeader(contactRequest, 3)
	b = append(b, 0xFF, 'h', 'i')
	_, err := FromBytes(b)
	require.Error(err, "ContactRequest: nickname overrun must not decode")

	// Empty body.
	_, err = FromBytes(commandHeader(contactRequest, 0))
	require.Error(err, "ContactRequest: empty body must not decode")
}

func TestContactResponse(t *testing.T) {
	require := require.New(t)

	for _, status := range []ResponseStatus{ResponsePending, ResponseAccepted, ResponseRejected, ResponseError} {
		cmd := &ContactResponse{Status: status}
		b := cmd.ToBytes()
		require.Equal(cmdOverhead+contactResponseLength, len(b), "ContactResponse: ToBytes() length")

		c, err := FromBytes(b)
		require.NoError(err, "ContactResponse: FromBytes() failed")
		require.Equal(status, c.(*ContactResponse).Status, "ContactResponse: FromBytes() Status")
	}
}

func TestResponseStatusTerminality(t *testing.T) {
	require := require.New(t)

	require.False(ResponsePending.IsTerminal())
	require.True(ResponseAccepted.IsTerminal())
	require.True(ResponseRejected.IsTerminal())
	require.True(ResponseError.IsTerminal())
}

func TestFromBytesInvalid(t *testing.T) {
	require := require.New(t)

	// Too short for the header.
	_, err := FromBytes([]byte{0x10, 0x00})
	require.Error(err, "FromBytes: short frame must not decode")

	// Unknown opcode.
	_, err = FromBytes([]byte{0x7F, 0x00, 0x00})
	require.Error(err, "FromBytes: unknown opcode must not decode")

	// Declared length disagrees with the frame.
	b := make([]byte, cmdOverhead+4)
	b[0] = byte(chatMessage)
	binary.BigEndian.PutUint16(b[1:3], 100)
	_, err = FromBytes(b)
	require.Error(err, "FromBytes: length mismatch must not decode")
}
