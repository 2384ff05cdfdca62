package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// CreateChallenge stores a new SMS challenge for the account behind phone.
func (s *Store) CreateChallenge(phone, inn string, now time.Time, ttl time.Duration) (*Challenge, error) {
	token, err := generateRandomToken(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge token: %w", err)
	}

	c := &Challenge{
		Token:     token,
		Phone:     phone,
		INN:       inn,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.Put(BucketChallenges, token, c); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return c, nil
}

// GetChallenge returns a live challenge issued for phone. Expired
// challenges are deleted and reported as ErrExpired.
func (s *Store) GetChallenge(token, phone string, now time.Time) (*Challenge, error) {
	var c Challenge
	if err := s.Get(BucketChallenges, token, &c); err != nil {
		return nil, err
	}
	if c.Phone != phone {
		return nil, ErrNotFound
	}
	if !now.Before(c.ExpiresAt) {
		_ = s.Delete(BucketChallenges, token)
		return nil, ErrExpired
	}
	return &c, nil
}

// ConsumeChallenge deletes the challenge so it cannot be verified twice.
// It fails with ErrNotFound when the challenge was already used.
func (s *Store) ConsumeChallenge(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketChallenges)
		if err != nil {
			return err
		}
		if b.Get([]byte(token)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(token))
	})
}
