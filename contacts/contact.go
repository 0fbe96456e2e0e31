// contact.go - Established contact collaborator interfaces.
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

import "github.com/veilchat/veilchat/protocol"

// Contact is an established contact, owned by the roster layer.  This
// package only needs enough of it to hand over an accepted request's
// connection.
type Contact interface {
	// Nickname returns the contact's display name.
	Nickname() string

	// Hostname returns the contact's peer identity.
	Hostname() protocol.PeerIdentity

	// SetHostname assigns the contact's peer identity.
	SetHostname(hostname protocol.PeerIdentity)

	// AssignConnection hands the connection to the contact, which takes
	// logical ownership of it.  Callers verify the transfer through
	// Connection.Owner.
	AssignConnection(conn *protocol.Connection)
}

// ContactGateway is the roster lookup and creation interface consumed by
// the incoming request manager.
type ContactGateway interface {
	// LookupHostname returns the known contact with the given identity,
	// or nil.
	LookupHostname(hostname protocol.PeerIdentity) Contact

	// AddContact creates a new contact with the given nickname.
	AddContact(nickname string) (Contact, error)
}
