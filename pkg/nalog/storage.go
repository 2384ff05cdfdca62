package nalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoToken is returned by TokenStorage.Load when nothing is stored.
var ErrNoToken = errors.New("no stored token")

// TokenStorage persists the token bundle between runs.
type TokenStorage interface {
	Load() (*Token, error)
	Save(token *Token) error
	Clear() error
}

// FileStorage keeps the token bundle as a JSON file.
type FileStorage struct {
	path string
}

// NewFileStorage creates a FileStorage writing to path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the token file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Load reads the token bundle from file.
func (f *FileStorage) Load() (*Token, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	token, err := ParseToken(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return token, nil
}

// Save writes the token bundle. The file is replaced atomically.
func (f *FileStorage) Save(token *Token) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

// Clear removes the token file. A missing file is not an error.
func (f *FileStorage) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
