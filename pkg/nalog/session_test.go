package nalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

const (
	testINN    = "123456789012"
	testBundle = `{"token":"access-1","refreshToken":"refresh-1","profile":{"inn":"123456789012","displayName":"Иванов И.И.","email":"ivanov@example.com"}}`
)

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...func(*ClientConfig)) *Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	config := ClientConfig{
		BaseURL:  srv.URL,
		DeviceID: "testdevice00000000000",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&config)
	}

	c, err := NewClient(config)
	require.NoError(t, err)
	return c
}

func authenticate(t *testing.T, c *Client) {
	t.Helper()
	require.NoError(t, c.Authenticate(context.Background(), []byte(testBundle)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func userHandler(accepted string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accepted {
			writeError(w, http.StatusUnauthorized, "auth.failed", "token expired")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "inn": testINN, "displayName": "Иванов И.И."})
	}
}

func TestAuthenticateInstallsBundle(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	assert.Equal(t, StateUnauthenticated, c.Session().State())

	authenticate(t, c)

	assert.Equal(t, StateAuthenticated, c.Session().State())
	profile, ok := c.Session().Profile()
	require.True(t, ok)
	assert.Equal(t, testINN, profile.INN)
	assert.Equal(t, "access-1", c.Session().Token().AccessToken)
}

func TestAuthenticateMalformedBundle(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())

	err := c.Authenticate(context.Background(), []byte(`{"refreshToken":`))
	assert.ErrorIs(t, err, nalogerr.ErrUnauthorized)

	err = c.Authenticate(context.Background(), []byte(`{"refreshToken":"r"}`))
	assert.ErrorIs(t, err, nalogerr.ErrUnauthorized)

	assert.Equal(t, StateUnauthenticated, c.Session().State())
}

type flakyStorage struct {
	fail  atomic.Bool
	saved atomic.Int32
}

func (f *flakyStorage) Load() (*Token, error) { return nil, ErrNoToken }
func (f *flakyStorage) Clear() error { return nil }

func (f *flakyStorage) Save(*Token) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	f.saved.Add(1)
	return nil
}

func TestAuthenticateFailedSaveKeepsState(t *testing.T) {
	storage := &flakyStorage{}
	storage.fail.Store(true)
	c := newTestClient(t, http.NewServeMux(), func(cfg *ClientConfig) { cfg.Storage = storage })

	err := c.Authenticate(context.Background(), []byte(testBundle))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StateUnauthenticated, c.Session().State())
	assert.Nil(t, c.Session().Token())

	storage.fail.Store(false)
	authenticate(t, c)
	assert.EqualValues(t, 1, storage.saved.Load())

	// A second bundle that cannot be saved does not replace the first.
	storage.fail.Store(true)
	err = c.Authenticate(context.Background(), []byte(`{"token":"access-9","refreshToken":"refresh-9","profile":{"inn":"123456789012"}}`))
	require.Error(t, err)
	assert.Equal(t, StateAuthenticated, c.Session().State())
	assert.Equal(t, "access-1", c.Session().Token().AccessToken)
}

func TestCreateNewAccessToken(t *testing.T) {
	var hits atomic.Int32
	bodies := make(chan map[string]any, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/lkfl", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		if body["password"] != "secret" {
			writeError(w, http.StatusBadRequest, "auth.failed", "Неверный ИНН или пароль")
			return
		}
		_, _ = io.WriteString(w, testBundle)
	})

	path := filepath.Join(t.TempDir(), "token.json")
	c := newTestClient(t, mux, func(cfg *ClientConfig) { cfg.StoragePath = path })

	t.Run("missing fields fail locally", func(t *testing.T) {
		_, err := c.CreateNewAccessToken(context.Background(), " ", "secret")
		assert.ErrorIs(t, err, nalogerr.ErrValidation)
		_, err = c.CreateNewAccessToken(context.Background(), testINN, "")
		assert.ErrorIs(t, err, nalogerr.ErrValidation)
		assert.Zero(t, hits.Load())
	})

	t.Run("rejected credentials", func(t *testing.T) {
		_, err := c.CreateNewAccessToken(context.Background(), testINN, "wrong")
		assert.ErrorIs(t, err, nalogerr.ErrUnauthorized)
		<-bodies
		assert.Equal(t, StateUnauthenticated, c.Session().State())
	})

	t.Run("success installs and persists", func(t *testing.T) {
		token, err := c.CreateNewAccessToken(context.Background(), testINN, "secret")
		require.NoError(t, err)
		assert.Equal(t, "access-1", token.AccessToken)

		body := <-bodies
		assert.Equal(t, testINN, body["username"])
		device, ok := body["deviceInfo"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "testdevice00000000000", device["sourceDeviceId"])
		assert.Equal(t, "WEB", device["sourceType"])

		stored, err := NewFileStorage(path).Load()
		require.NoError(t, err)
		assert.Equal(t, token, stored)
	})
}

func TestCallWithoutTokenFailsLocally(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

	c := newTestClient(t, mux)

	_, err := c.User().Get(context.Background())
	assert.ErrorIs(t, err, nalogerr.ErrUnauthorized)
	assert.Zero(t, hits.Load())
}

func TestRefreshOnUnauthorized(t *testing.T) {
	var refreshes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler("access-2"))
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		var body struct {
			RefreshToken string     `json:"refreshToken"`
			DeviceInfo   DeviceInfo `json:"deviceInfo"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh-1", body.RefreshToken)
		assert.Equal(t, "testdevice00000000000", body.DeviceInfo.SourceDeviceID)
		writeJSON(w, http.StatusOK, map[string]string{"token": "access-2", "refreshToken": "refresh-2"})
	})

	path := filepath.Join(t.TempDir(), "token.json")
	c := newTestClient(t, mux, func(cfg *ClientConfig) { cfg.StoragePath = path })
	authenticate(t, c)

	user, err := c.User().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testINN, user.INN)
	assert.EqualValues(t, 1, refreshes.Load())

	token := c.Session().Token()
	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-2", token.RefreshToken)
	assert.Equal(t, testINN, token.Profile.INN)

	stored, err := NewFileStorage(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "access-2", stored.AccessToken)
}

func TestRefreshIsSingleFlight(t *testing.T) {
	var refreshes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler("access-2"))
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"token": "access-2", "refreshToken": "refresh-2"})
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.User().Get(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, refreshes.Load())
	assert.Equal(t, "access-2", c.Session().Token().AccessToken)
}

func TestSecondUnauthorizedIsReturned(t *testing.T) {
	var refreshes, calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusUnauthorized, "auth.failed", "token expired")
	})
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"token": "access-2"})
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	_, err := c.User().Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, nalogerr.ErrUnauthorized)
	assert.EqualValues(t, 1, refreshes.Load())
	assert.EqualValues(t, 2, calls.Load())

	// The refresh response carried no refresh token: the old one is kept.
	assert.Equal(t, "refresh-1", c.Session().Token().RefreshToken)
}

func TestRejectedRefreshUnauthenticates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler("never"))
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "auth.refresh", "refresh token is not valid")
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	_, err := c.User().Get(context.Background())
	assert.ErrorIs(t, err, nalogerr.ErrUnauthorized)
	assert.Equal(t, StateUnauthenticated, c.Session().State())
}

func TestRefreshTransportFailureKeepsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadGateway, "", "upstream unavailable")
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	err := c.Session().Refresh(context.Background())
	assert.ErrorIs(t, err, nalogerr.ErrTransport)
	assert.Equal(t, StateAuthenticated, c.Session().State())
	assert.Equal(t, "access-1", c.Session().Token().AccessToken)
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		writeJSON(w, http.StatusOK, map[string]string{"token": "access-2", "refreshToken": "refresh-2"})
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Session().Refresh(ctx) }()

	<-started
	assert.Equal(t, StateRefreshing, c.Session().State())
	cancel()

	err := <-done
	assert.ErrorIs(t, err, nalogerr.ErrTransport)
	assert.True(t, errors.Is(err, context.Canceled))

	close(release)
	require.Eventually(t, func() bool {
		return c.Session().Token().AccessToken == "access-2"
	}, time.Second, 10*time.Millisecond)
}

func TestLogoutClearsStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	c := newTestClient(t, http.NewServeMux(), func(cfg *ClientConfig) { cfg.StoragePath = path })
	authenticate(t, c)

	require.NoError(t, c.Logout())
	assert.Equal(t, StateUnauthenticated, c.Session().State())

	_, err := NewFileStorage(path).Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewClientRestoresToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	token, err := ParseToken([]byte(testBundle))
	require.NoError(t, err)
	require.NoError(t, NewFileStorage(path).Save(token))

	c := newTestClient(t, http.NewServeMux(), func(cfg *ClientConfig) { cfg.StoragePath = path })

	assert.Equal(t, StateAuthenticated, c.Session().State())
	assert.Equal(t, token, c.Session().Token())
}

func TestServerErrorClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/taxes", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "internal", "boom")
	})
	mux.HandleFunc("GET /v1/payment-type/table", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "<html>forbidden</html>")
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	_, err := c.Tax().Get(context.Background())
	assert.ErrorIs(t, err, nalogerr.ErrTransport)

	_, err = c.PaymentType().Table(context.Background())
	var nerr *nalogerr.Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, nalogerr.KindDomain, nerr.Kind)
	assert.Equal(t, http.StatusForbidden, nerr.Status)
	assert.Equal(t, "<html>forbidden</html>", nerr.Message)
}
