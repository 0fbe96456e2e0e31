// identity.go - Hidden service peer identities.
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

import "strings"

// OnionSuffix is the hostname suffix shared by all hidden service peers.
const OnionSuffix = ".onion"

// PeerIdentity is the canonical name of a hidden service peer: the lower
// cased service hostname including the ".onion" suffix.  Two identities
// are the same peer iff the strings compare equal.
type PeerIdentity string

// CanonicalPeerIdentity canonicalizes a raw hostname into a PeerIdentity,
// lower casing it and appending the ".onion" suffix when absent.  The
// empty string canonicalizes to the empty (invalid) identity.
func CanonicalPeerIdentity(hostname string) PeerIdentity {
	if hostname == "" {
		return ""
	}
	hostname = strings.ToLower(hostname)
	if !strings.HasSuffix(hostname, OnionSuffix) {
		hostname += OnionSuffix
	}
	return PeerIdentity(hostname)
}

// Valid returns true if p is a plausible canonical peer identity.
func (p PeerIdentity) Valid() bool {
	s := string(p)
	if len(s) <= len(OnionSuffix) || !strings.HasSuffix(s, OnionSuffix) {
		return false
	}
	return s == strings.ToLower(s)
}

// SettingsKey returns the identity with the ".onion" suffix stripped, the
// form used to key persistent per-peer records.
func (p PeerIdentity) SettingsKey() string {
	return strings.TrimSuffix(string(p), OnionSuffix)
}

func (p PeerIdentity) String() string {
	return string(p)
}
