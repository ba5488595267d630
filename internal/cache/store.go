// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package cache implements the durable dedup store mapping a registrant's
// normalized email to the record last submitted to the meeting tool.
//
// The store is backed by BadgerDB. Every Set is a single transaction, so a
// reader never observes a torn write; Flush forces buffered writes to stable
// storage at the end of a synchronization pass. Entries are never expired:
// the intended usage pattern (one event, bounded attendee count) keeps the
// store small, and re-registration under a known email is deliberately
// treated as already-synced.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/eventops/regsync/internal/models"
)

var (
	// ErrNotFound is returned by Get and Delete when the key is absent.
	// Distinct from an empty value.
	ErrNotFound = errors.New("cache: key not found")

	// ErrInvalidKey is returned by operations given an empty key.
	ErrInvalidKey = errors.New("cache: key must be a non-empty string")
)

// DefaultDir is the store location used when none is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "regsync-cache")
}

// Entry is the persisted record of a previously-synced registrant.
type Entry struct {
	User models.User `json:"user"`
	// SyncedAt is the UTC time the user was committed after a successful
	// submission.
	SyncedAt time.Time `json:"synced_at"`
}

// Item is a single key/entry pair from a full enumeration.
type Item struct {
	Key   string
	Entry Entry
}

// Options configures Open.
type Options struct {
	// Path is the storage directory. Empty means DefaultDir().
	Path string

	// Reset discards any persisted state before opening. Used by tests and
	// explicit administrative resets.
	Reset bool
}

// Store is a durable mapping from normalized email to Entry.
//
// A Store is exclusively owned by one running engine; no concurrent writer
// is assumed.
type Store struct {
	db   *badger.DB
	path string
}

// Open opens (creating if absent) the store at opts.Path.
func Open(opts Options) (*Store, error) {
	path := opts.Path
	if path == "" {
		path = DefaultDir()
	}

	if opts.Reset {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("cache: reset %s: %w", path, err)
		}
	}

	badgerOpts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the storage directory backing this store.
func (s *Store) Path() string {
	return s.path
}

// Contains reports whether key is present. No side effects.
func (s *Store) Contains(key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cache: contains %q: %w", key, err)
	}
	return found, nil
}

// Get retrieves the entry for key, or ErrNotFound if absent.
func (s *Store) Get(key string) (Entry, error) {
	if key == "" {
		return Entry{}, ErrInvalidKey
	}

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("cache: get %q: %w", key, err)
	}
	return entry, nil
}

// Set inserts or overwrites the entry for key with the given user and the
// current UTC timestamp. The write is atomic: a subsequent Get sees either
// the previous entry or the new one, never a torn value.
func (s *Store) Set(key string, user models.User) error {
	return s.SetEntry(key, Entry{User: user, SyncedAt: time.Now().UTC()})
}

// SetEntry inserts or overwrites a fully-specified entry.
func (s *Store) SetEntry(key string, entry Entry) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: marshal entry for %q: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("cache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key, or returns ErrNotFound if absent.
func (s *Store) Delete(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		// Badger deletes are blind; check existence first so absent keys
		// surface ErrNotFound per the store contract.
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all keys. Order is not significant.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: keys: %w", err)
	}
	return keys, nil
}

// Values returns all stored users. Order is not significant.
func (s *Store) Values() ([]models.User, error) {
	items, err := s.Items()
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(items))
	for _, item := range items {
		users = append(users, item.Entry.User)
	}
	return users, nil
}

// Items returns all key/entry pairs. Order is not significant.
func (s *Store) Items() ([]Item, error) {
	var items []Item
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))

			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode entry for %q: %w", key, err)
			}
			items = append(items, Item{Key: key, Entry: entry})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: items: %w", err)
	}
	return items, nil
}

// Len returns the number of entries.
func (s *Store) Len() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache: len: %w", err)
	}
	return count, nil
}

// Flush forces buffered writes to stable storage. The engine calls this at
// the end of every pass so a crash between passes never loses committed
// entries.
func (s *Store) Flush() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("cache: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return nil
}
