package store

import (
	"encoding/json"
	"fmt"
)

// PutAccount creates or replaces an account.
func (s *Store) PutAccount(acc *Account) error {
	if acc.INN == "" {
		return fmt.Errorf("account INN is required")
	}
	return s.Put(BucketAccounts, acc.INN, acc)
}

// GetAccount retrieves an account by INN.
func (s *Store) GetAccount(inn string) (*Account, error) {
	var acc Account
	if err := s.Get(BucketAccounts, inn, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// FindAccountByPhone retrieves the account registered with phone.
func (s *Store) FindAccountByPhone(phone string) (*Account, error) {
	results, err := s.List(BucketAccounts, "", func(data []byte) bool {
		var acc Account
		if err := json.Unmarshal(data, &acc); err != nil {
			return false
		}
		return acc.Phone == phone
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	var acc Account
	if err := json.Unmarshal(results[0], &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acc, nil
}
