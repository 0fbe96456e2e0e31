// commands.go - Wire protocol commands.
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

// Package commands implements the veilchat wire protocol commands.
//
// Every command shares a fixed header of the form
// [opcode:1][length:2 big-endian], followed by a per-opcode body of
// exactly `length` bytes.  Decoders are registered per opcode; a frame
// carrying an unknown opcode or a malformed body yields an error and is
// discarded by the caller without a protocol-level NACK.
package commands

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	// cmdOverhead is the length of the common command header.
	cmdOverhead = 1 + 2

	// MaxBodyLength is the maximum command body length expressible by
	// the 2 byte length field.
	MaxBodyLength = 0xFFFF

	// chatMessageBaseLength is the fixed portion of a ChatMessage body.
	chatMessageBaseLength = 4

	// MaxChatTextLength is the longest chat text that fits in a single
	// command body alongside the time delta field.
	MaxChatTextLength = MaxBodyLength - chatMessageBaseLength

	contactRequestBaseLength = 1
	contactResponseLength    = 1
	maxContactNicknameLength = 0xFF

	contactRequest  commandID = 0x01
	contactResponse commandID = 0x02

	chatMessage commandID = 0x10
)

var (
	errInvalidCommand = errors.New("commands: invalid wire protocol command")

	decoders = make(map[commandID]func([]byte) (Command, error))
)

type commandID byte

// ResponseStatus is a contact request channel response code.
type ResponseStatus uint8

const (
	// ResponsePending indicates the request was recorded and is awaiting
	// a user decision.  It is the only non-terminal status.
	ResponsePending ResponseStatus = iota

	// ResponseAccepted indicates the request was accepted.
	ResponseAccepted

	// ResponseRejected indicates the request was rejected.
	ResponseRejected

	// ResponseError indicates the request could not be processed.
	ResponseError
)

// IsTerminal returns true if no further response may follow s.
func (s ResponseStatus) IsTerminal() bool {
	return s != ResponsePending
}

func (s ResponseStatus) String() string {
	switch s {
	case ResponsePending:
		return "Pending"
	case ResponseAccepted:
		return "Accepted"
	case ResponseRejected:
		return "Rejected"
	case ResponseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Command is the common interface exposed by all wire command structures.
type Command interface {
	// ToBytes serializes the command and returns the resulting slice.
	ToBytes() []byte
}

// registerCommand installs the decoder for an opcode.  Duplicate opcode
// registration is a programming error and panics at init time.
func registerCommand(id commandID, fromBytes func([]byte) (Command, error)) {
	if _, ok := decoders[id]; ok {
		panic("commands: duplicate opcode registration")
	}
	decoders[id] = fromBytes
}

func init() {
	registerCommand(contactRequest, contactRequestFromBytes)
	registerCommand(contactResponse, contactResponseFromBytes)
	registerCommand(chatMessage, chatMessageFromBytes)
}

func commandHeader(id commandID, bodyLen int) []byte {
	out := make([]byte, cmdOverhead, cmdOverhead+bodyLen)
	out[0] = byte(id)
	binary.BigEndian.PutUint16(out[1:3], uint16(bodyLen))
	return out
}

// ContactRequest is a de-serialized contact_request command, the opening
// message on a contact request channel.
type ContactRequest struct {
	Nickname string
	Message  string
}

// ToBytes serializes the ContactRequest and returns the resulting slice.
func (c *ContactRequest) ToBytes() []byte {
	nick := []byte(c.Nickname)
	if len(nick) > maxContactNicknameLength {
		nick = nick[:maxContactNicknameLength]
	}
	msg := []byte(c.Message)
	if max := MaxBodyLength - contactRequestBaseLength - len(nick); len(msg) > max {
		msg = msg[:max]
	}

	out := commandHeader(contactRequest, contactRequestBaseLength+len(nick)+len(msg))
	out = append(out, byte(len(nick)))
	out = append(out, nick...)
	out = append(out, msg...)
	return out
}

func contactRequestFromBytes(b []byte) (Command, error) {
	if len(b) < contactRequestBaseLength {
		return nil, errInvalidCommand
	}

	nickLen := int(b[0])
	b = b[contactRequestBaseLength:]
	if len(b) < nickLen {
		return nil, errInvalidCommand
	}

	r := new(ContactRequest)
	r.Nickname = string(b[:nickLen])
	r.Message = string(b[nickLen:])
	return r, nil
}

// ContactResponse is a de-serialized contact_response command, sent by the
// receiving side of a contact request channel.
type ContactResponse struct {
	Status ResponseStatus
}

// ToBytes serializes the ContactResponse and returns the resulting slice.
func (c *ContactResponse) ToBytes() []byte {
	out := commandHeader(contactResponse, contactResponseLength)
	return append(out, byte(c.Status))
}

func contactResponseFromBytes(b []byte) (Command, error) {
	if len(b) != contactResponseLength {
		return nil, errInvalidCommand
	}

	r := new(ContactResponse)
	r.Status = ResponseStatus(b[0])
	return r, nil
}

// ChatMessage is a de-serialized chat_message command.  TimeDelta is the
// number of whole seconds between the message's composition and its
// encoding; the text fills the remainder of the body with no inner length
// prefix.
type ChatMessage struct {
	TimeDelta uint32
	Text      string
}

// NewChatMessage builds a ChatMessage from a composition timestamp and
// text.  Text longer than MaxChatTextLength is truncated; the returned
// flag reports whether truncation happened so callers can surface it.
func NewChatMessage(timestamp time.Time, text string) (*ChatMessage, bool) {
	truncated := false
	if len(text) > MaxChatTextLength {
		text = text[:MaxChatTextLength]
		truncated = true
	}

	delta := time.Since(timestamp)
	if delta < 0 {
		delta = 0
	}
	return &ChatMessage{
		TimeDelta: uint32(delta / time.Second),
		Text:      text,
	}, truncated
}

// ToBytes serializes the ChatMessage and returns the resulting slice.
func (c *ChatMessage) ToBytes() []byte {
	text := []byte(c.Text)
	// Clamp again so a hand-built message cannot overflow the length field.
	if len(text) > MaxChatTextLength {
		text = text[:MaxChatTextLength]
	}

	out := commandHeader(chatMessage, chatMessageBaseLength+len(text))
	out = out[:cmdOverhead+chatMessageBaseLength]
	binary.BigEndian.PutUint32(out[cmdOverhead:], c.TimeDelta)
	out = append(out, text...)
	return out
}

func chatMessageFromBytes(b []byte) (Command, error) {
	if len(b) < chatMessageBaseLength {
		return nil, errInvalidCommand
	}

	r := new(ChatMessage)
	r.TimeDelta = binary.BigEndian.Uint32(b[0:4])
	r.Text = string(b[chatMessageBaseLength:])
	return r, nil
}

// FromBytes de-serializes exactly one command frame from b, returning a
// Command or an error.  The buffer must contain the complete frame and
// nothing else.
func FromBytes(b []byte) (Command, error) {
	if len(b) < cmdOverhead {
		return nil, errInvalidCommand
	}

	id := commandID(b[0])
	bodyLen := binary.BigEndian.Uint16(b[1:3])
	body := b[cmdOverhead:]
	if int(bodyLen) != len(body) {
		return nil, errInvalidCommand
	}

	fromBytes, ok := decoders[id]
	if !ok {
		return nil, errInvalidCommand
	}
	return fromBytes(body)
}
