// events.go - Contact request manager events.
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

import "fmt"

// Event is the generic event sent over the manager's event sink channel.
type Event interface {
	// String returns a string representation of the Event.
	String() string
}

// RequestAddedEvent is emitted exactly once when a new incoming contact
// request enters the live set, either from the wire or when loaded from
// persisted state at startup.
type RequestAddedEvent struct {
	Request *IncomingContactRequest
}

func (e *RequestAddedEvent) String() string {
	return fmt.Sprintf("RequestAdded: %v", e.Request.Hostname())
}

// RequestRemovedEvent is emitted when a request leaves the live set after
// accept, reject or manual removal.
type RequestRemovedEvent struct {
	Request *IncomingContactRequest
}

func (e *RequestRemovedEvent) String() string {
	return fmt.Sprintf("RequestRemoved: %v", e.Request.Hostname())
}

// RequestChangedEvent is emitted when an existing request is renewed by a
// repeated announcement from its peer.
type RequestChangedEvent struct {
	Request *IncomingContactRequest
}

func (e *RequestChangedEvent) String() string {
	return fmt.Sprintf("RequestChanged: %v", e.Request.Hostname())
}
