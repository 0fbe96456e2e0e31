// store.go - Hierarchical settings store contract.
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

// Package settings provides the persistent key-value configuration store
// used by the protocol core.  Keys are dotted paths
// (e.g. "contactRequests.<peer-key>.nickname"); values are opaque bytes,
// with cbor-encoded typed helpers layered on top.
package settings

import (
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrNoSuchKey is returned by Read for a key that was never written.
var ErrNoSuchKey = errors.New("settings: no such key")

// Store is a hierarchical key-value store addressed by dotted paths.
type Store interface {
	// Read returns the value stored at key, or ErrNoSuchKey.
	Read(key string) ([]byte, error)

	// Write stores value at key, replacing any previous value.
	Write(key string, value []byte) error

	// Undefine removes the key and every key below it.
	Undefine(prefix string) error

	// Keys returns the distinct direct child names under prefix, sorted.
	// An empty prefix enumerates the top level.
	Keys(prefix string) ([]string, error)

	// ListContains reports whether the array-valued record at key
	// contains element.  A missing record contains nothing.
	ListContains(key, element string) (bool, error)

	// ListAppend appends element to the array-valued record at key,
	// creating the record if needed.  Insertion deduplicates: appending
	// an element already present is a no-op.
	ListAppend(key, element string) error
}

// ReadString reads a cbor-encoded string value, returning the empty
// string for a missing key.
func ReadString(s Store, key string) (string, error) {
	b, err := s.Read(key)
	if errors.Is(err, ErrNoSuchKey) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var v string
	if err = cbor.Unmarshal(b, &v); err != nil {
		return "", err
	}
	return v, nil
}

// WriteString writes a cbor-encoded string value.
func WriteString(s Store, key, value string) error {
	b, err := cbor.Marshal(value)
	if err != nil {
		return err
	}
	return s.Write(key, b)
}

// ReadTime reads a cbor-encoded timestamp, returning the zero time for a
// missing key.
func ReadTime(s Store, key string) (time.Time, error) {
	b, err := s.Read(key)
	if errors.Is(err, ErrNoSuchKey) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var v time.Time
	if err = cbor.Unmarshal(b, &v); err != nil {
		return time.Time{}, err
	}
	return v, nil
}

// WriteTime writes a cbor-encoded timestamp.
func WriteTime(s Store, key string, value time.Time) error {
	b, err := cbor.Marshal(value)
	if err != nil {
		return err
	}
	return s.Write(key, b)
}
