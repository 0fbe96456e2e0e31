// errors.go - Protocol error values.
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

import "errors"

var (
	// ErrPurposeAlreadySet is returned by Claim when the connection's
	// purpose was already claimed.  The caller is responsible for closing
	// a connection it failed to claim.
	ErrPurposeAlreadySet = errors.New("protocol: connection purpose already set")

	// ErrConnectionClosed is returned by operations on a closed connection.
	ErrConnectionClosed = errors.New("protocol: connection closed")

	// ErrChannelExists is returned by OpenChannel when a channel of the
	// requested kind is already open on the connection.
	ErrChannelExists = errors.New("protocol: channel of this kind already open")

	// ErrChannelNotAllowed is returned by OpenChannel when the connection's
	// purpose does not admit the requested channel kind.
	ErrChannelNotAllowed = errors.New("protocol: channel kind not allowed for connection purpose")

	// ErrChannelInvalidated is returned when sending on a channel that is
	// no longer open.
	ErrChannelInvalidated = errors.New("protocol: channel invalidated")

	// ErrResponseFinished is returned when a terminal response was already
	// sent on a contact request channel.
	ErrResponseFinished = errors.New("protocol: terminal response already sent")
)
