package store

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const tokenLength = 32

// TokenPair is what an authentication hands out.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssueTokens creates an access and a refresh token for inn bound to deviceID.
func (s *Store) IssueTokens(inn, deviceID string, now time.Time, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	var pair *TokenPair
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		pair, err = issueTokens(tx, inn, deviceID, now, accessTTL, refreshTTL)
		return err
	})
	return pair, err
}

// ValidateAccessToken returns the token record. Expired tokens are deleted
// and reported as ErrExpired.
func (s *Store) ValidateAccessToken(token string, now time.Time) (*AccessToken, error) {
	var t AccessToken
	if err := s.Get(BucketTokens, token, &t); err != nil {
		return nil, err
	}

	if !now.Before(t.ExpiresAt) {
		_ = s.Delete(BucketTokens, token)
		return nil, ErrExpired
	}

	return &t, nil
}

// RevokeAccessToken deletes an access token.
func (s *Store) RevokeAccessToken(token string) error {
	return s.Delete(BucketTokens, token)
}

// RotateRefreshToken consumes refresh and issues a new token pair. The
// refresh token must have been issued to deviceID.
func (s *Store) RotateRefreshToken(refresh, deviceID string, now time.Time, accessTTL, refreshTTL time.Duration) (*TokenPair, string, error) {
	var (
		pair *TokenPair
		inn  string
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		var rt RefreshToken
		if err := getJSON(tx, BucketRefreshTokens, refresh, &rt); err != nil {
			return err
		}

		if !now.Before(rt.ExpiresAt) {
			return ErrExpired
		}
		if rt.DeviceID != deviceID {
			return ErrNotFound
		}

		b, err := bucket(tx, BucketRefreshTokens)
		if err != nil {
			return err
		}
		if err := b.Delete([]byte(refresh)); err != nil {
			return err
		}

		inn = rt.INN
		pair, err = issueTokens(tx, rt.INN, deviceID, now, accessTTL, refreshTTL)
		return err
	})
	if errors.Is(err, ErrExpired) || errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return pair, inn, nil
}

func issueTokens(tx *bolt.Tx, inn, deviceID string, now time.Time, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	access, err := generateRandomToken(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refresh, err := generateRandomToken(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := putJSON(tx, BucketTokens, access, AccessToken{INN: inn, DeviceID: deviceID, ExpiresAt: now.Add(accessTTL)}); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	rt := RefreshToken{INN: inn, DeviceID: deviceID, ExpiresAt: now.Add(refreshTTL)}
	if err := putJSON(tx, BucketRefreshTokens, refresh, rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
