// Package store implements an optional on-disk result cache (spec's
// domain-stack expansion): a Badger-backed map from a hash of the
// sanitized user input to the last schema that validated successfully
// for it. This is a pure cache consulted before spending a generation
// call — a hit still exists only to save a round trip, never to bypass
// execguard/jsonsafe/schemavalidate, which still run in-process on every
// answer whether it came from the model or the cache.
package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/badger/v4"
)

// Store wraps a Badger database keyed by the SHA-256 of the sanitized
// input that produced each cached schema.
type Store struct {
	db *badger.DB
}

// OpenInMemory returns a Store backed by an in-memory Badger instance,
// grounded on the teacher's OpenInMemory helper — useful for tests and
// for deployments that don't want a persistent cache directory.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenWithPath returns a Store backed by a Badger database at dir on
// disk, created if absent.
func OpenWithPath(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key hashes sanitizedInput into the lookup key used by Get/Put, so
// callers never store or compare raw user text as the key.
func Key(sanitizedInput string) string {
	sum := sha256.Sum256([]byte(sanitizedInput))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached schema for key and true, or "", false on a
// miss or any read error (a cache is never allowed to fail the request
// that consults it).
func (s *Store) Get(key string) (string, bool) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false
	}
	return value, true
}

// Put stores schema under key, overwriting any existing entry.
func (s *Store) Put(key, schema string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(schema))
	})
}
