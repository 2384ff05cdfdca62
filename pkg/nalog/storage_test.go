package nalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	storage := NewFileStorage(path)

	_, err := storage.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	token := &Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Profile:      Profile{INN: testINN, DisplayName: "Иванов И.И.", Email: "ivanov@example.com"},
	}
	require.NoError(t, storage.Save(token))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	loaded, err := storage.Load()
	require.NoError(t, err)
	assert.Equal(t, token, loaded)

	token2 := &Token{AccessToken: "access-2", RefreshToken: "refresh-2", Profile: token.Profile}
	require.NoError(t, storage.Save(token2))
	loaded, err = storage.Load()
	require.NoError(t, err)
	assert.Equal(t, token2, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, storage.Clear())
	require.NoError(t, storage.Clear())
	_, err = storage.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewFileStorage(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestTokenBundleShape(t *testing.T) {
	data, err := MarshalToken(&Token{AccessToken: "a", RefreshToken: "r", Profile: Profile{INN: testINN}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"a","refreshToken":"r","profile":{"inn":"123456789012","displayName":"","email":""}}`, string(data))

	parsed, err := ParseToken([]byte(`{"token":"a","refreshToken":"r","profile":{"inn":"1"},"extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, "1", parsed.Profile.INN)
}

func TestLoadOrCreateDeviceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-id")

	id, err := LoadOrCreateDeviceID(path)
	require.NoError(t, err)
	assert.Len(t, id, 21)

	again, err := LoadOrCreateDeviceID(path)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	assert.NotEqual(t, NewDeviceID(), NewDeviceID())
}
