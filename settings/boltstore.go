// boltstore.go - BoltDB backed settings store.
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

package settings

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

const settingsBucket = "settings"

// BoltStore is a Store backed by a single-bucket BoltDB database.  Dotted
// paths map directly onto bucket keys, which keeps subtree operations a
// simple prefix scan.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the settings database at path.
func OpenBolt(path string) (*BoltStore, error) {
	const fileMode = 0600

	db, err := bolt.Open(path, fileMode, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(settingsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: failed to initialize database: %v", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Read returns the value stored at key, or ErrNoSuchKey.
func (s *BoltStore) Read(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(settingsBucket)).Get([]byte(key))
		if v == nil {
			return ErrNoSuchKey
		}
		value = append([]byte{}, v...)
		return nil
	})
	return value, err
}

// Write stores value at key.
func (s *BoltStore) Write(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(key), value)
	})
}

// Undefine removes the key and every key below it.
func (s *BoltStore) Undefine(prefix string) error {
	childPrefix := []byte(prefix + ".")
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(settingsBucket)).Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil; k, _ = c.Next() {
			if !bytes.Equal(k, []byte(prefix)) && !bytes.HasPrefix(k, childPrefix) {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys returns the distinct direct child names under prefix, sorted.
func (s *BoltStore) Keys(prefix string) ([]string, error) {
	childPrefix := ""
	if prefix != "" {
		childPrefix = prefix + "."
	}

	seen := make(map[string]bool)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(settingsBucket)).Cursor()
		for k, _ := c.Seek([]byte(childPrefix)); k != nil; k, _ = c.Next() {
			if !strings.HasPrefix(string(k), childPrefix) {
				break
			}
			name := strings.TrimPrefix(string(k), childPrefix)
			if idx := strings.IndexByte(name, '.'); idx >= 0 {
				name = name[:idx]
			}
			if name != "" {
				seen[name] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *BoltStore) readList(key string) ([]string, error) {
	b, err := s.Read(key)
	if err == ErrNoSuchKey {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err = cbor.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListContains reports whether the array-valued record at key contains
// element.
func (s *BoltStore) ListContains(key, element string) (bool, error) {
	list, err := s.readList(key)
	if err != nil {
		return false, err
	}
	for _, v := range list {
		if v == element {
			return true, nil
		}
	}
	return false, nil
}

// ListAppend appends element to the array-valued record at key unless it
// is already present.
func (s *BoltStore) ListAppend(key, element string) error {
	list, err := s.readList(key)
	if err != nil {
		return err
	}
	for _, v := range list {
		if v == element {
			return nil
		}
	}
	list = append(list, element)
	b, err := cbor.Marshal(list)
	if err != nil {
		return err
	}
	return s.Write(key, b)
}
