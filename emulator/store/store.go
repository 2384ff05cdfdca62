// Package store persists the emulator state in a bbolt database.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrExpired is returned when a token or challenge outlived its TTL.
	ErrExpired = errors.New("record expired")

	// ErrAlreadyCancelled is returned when cancelling a cancelled receipt.
	ErrAlreadyCancelled = errors.New("receipt already cancelled")
)

// Bucket names.
const (
	BucketAccounts      = "accounts"
	BucketTokens        = "tokens"
	BucketRefreshTokens = "refresh_tokens"
	BucketChallenges    = "challenges"
	BucketReceipts      = "receipts"
	BucketCounters      = "counters"
)

var buckets = []string{
	BucketAccounts,
	BucketTokens,
	BucketRefreshTokens,
	BucketChallenges,
	BucketReceipts,
	BucketCounters,
}

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// New creates a new Store instance and initializes buckets.
func New(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores value as JSON under key.
func (s *Store) Put(bucketName, key string, value any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketName, key, value)
	})
}

// Get decodes the JSON stored under key into value.
func (s *Store) Get(bucketName, key string, value any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, bucketName, key, value)
	})
}

// Delete removes key. A missing key is not an error.
func (s *Store) Delete(bucketName, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

// List retrieves all values from the specified bucket whose key starts
// with prefix.
func (s *Store) List(bucketName, prefix string, filter func(data []byte) bool) ([][]byte, error) {
	var results [][]byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}

		c := b.Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if filter == nil || filter(v) {
				// Copy the value since it's only valid during the transaction.
				copied := make([]byte, len(v))
				copy(copied, v)
				results = append(results, copied)
			}
		}
		return nil
	})

	return results, err
}

// Increment adds one to the named counter and returns the new value.
func (s *Store) Increment(name string) (uint64, error) {
	var value uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketCounters)
		if err != nil {
			return err
		}
		if data := b.Get([]byte(name)); len(data) == 8 {
			value = binary.BigEndian.Uint64(data)
		}
		value++
		return b.Put([]byte(name), utob(value))
	})
	return value, err
}

// Counter returns the current value of the named counter.
func (s *Store) Counter(name string) (uint64, error) {
	var value uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketCounters)
		if err != nil {
			return err
		}
		if data := b.Get([]byte(name)); len(data) == 8 {
			value = binary.BigEndian.Uint64(data)
		}
		return nil
	})
	return value, err
}

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", name)
	}
	return b, nil
}

func putJSON(tx *bolt.Tx, bucketName, key string, value any) error {
	b, err := bucket(tx, bucketName)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return b.Put([]byte(key), data)
}

func getJSON(tx *bolt.Tx, bucketName, key string, value any) error {
	b, err := bucket(tx, bucketName)
	if err != nil {
		return err
	}

	data := b.Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}

	return json.Unmarshal(data, value)
}

// utob converts a uint64 to a byte slice for use as a bbolt value.
func utob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
