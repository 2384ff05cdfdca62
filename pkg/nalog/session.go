package nalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

// State is the authentication state of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

var smsCodePattern = regexp.MustCompile(`^\d{4,8}$`)

// Session owns the current Token and performs every authenticated request.
// It is safe for concurrent use.
//
// The token is replaced wholesale through an atomic pointer, so readers see
// either the previous or the next token, never a mix. Refresh is single-flight:
// concurrent callers holding the same stale token share one refresh exchange.
type Session struct {
	baseURL string
	http    Doer
	device  DeviceInfo
	storage TokenStorage
	logger  *slog.Logger
	now     func() time.Time

	token      atomic.Pointer[Token]
	refreshing atomic.Bool
	group      singleflight.Group
}

// State reports the current authentication state.
func (s *Session) State() State {
	if s.token.Load() == nil {
		return StateUnauthenticated
	}
	if s.refreshing.Load() {
		return StateRefreshing
	}
	return StateAuthenticated
}

// Token returns the current token, or nil when unauthenticated.
// The returned value must not be modified.
func (s *Session) Token() *Token {
	return s.token.Load()
}

// Profile returns the taxpayer profile of the current token.
func (s *Session) Profile() (Profile, bool) {
	t := s.token.Load()
	if t == nil {
		return Profile{}, false
	}
	return t.Profile, true
}

// DeviceID returns the device identifier sent with auth requests.
func (s *Session) DeviceID() string {
	return s.device.SourceDeviceID
}

// install persists t when storage is set and then makes it the current
// token. A failed save leaves the session as it was.
func (s *Session) install(t *Token) error {
	if s.storage != nil {
		if err := s.storage.Save(t); err != nil {
			s.logger.Error("failed to persist token", "error", err)
			return fmt.Errorf("failed to persist token: %w", err)
		}
	}
	s.token.Store(t)
	return nil
}

// restore loads a previously stored token. A missing token is not an error.
func (s *Session) restore() error {
	if s.storage == nil {
		return nil
	}
	t, err := s.storage.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil
		}
		return err
	}
	s.token.Store(t)
	s.logger.Debug("restored stored token", "inn", t.Profile.INN)
	return nil
}

// Authenticate installs a previously issued token bundle.
func (s *Session) Authenticate(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := ParseToken(payload)
	if err != nil {
		return err
	}
	if err := s.install(t); err != nil {
		return err
	}
	s.logger.Info("authenticated with token bundle", "inn", t.Profile.INN)
	return nil
}

// CreateNewAccessToken exchanges INN and password for a token and installs it.
func (s *Session) CreateNewAccessToken(ctx context.Context, inn, password string) (*Token, error) {
	const op = "auth.credentials"

	if strings.TrimSpace(inn) == "" {
		return nil, nalogerr.Validation("inn", "required", "INN is required")
	}
	if password == "" {
		return nil, nalogerr.Validation("password", "required", "password is required")
	}

	body := map[string]any{
		"username":   strings.TrimSpace(inn),
		"password":   password,
		"deviceInfo": s.device,
	}

	var resp tokenResponse
	if err := s.send(ctx, nalogerr.EndpointCredentials, op, http.MethodPost, "/v1/auth/lkfl", "", body, &resp); err != nil {
		return nil, err
	}

	t, err := tokenFromResponse(op, resp)
	if err != nil {
		return nil, err
	}
	if err := s.install(t); err != nil {
		return nil, err
	}

	s.logger.Info("authenticated with credentials", "inn", t.Profile.INN)
	return t, nil
}

// PhoneChallenge is the server's answer to a phone-challenge request.
type PhoneChallenge struct {
	Phone          string    `json:"-"`
	ChallengeToken string    `json:"challengeToken"`
	ExpireDate     string    `json:"expireDate"`
	ExpireIn       int       `json:"expireIn"`
	IssuedAt       time.Time `json:"-"`
}

// ExpiresAt returns the local expiry estimate. Zero when the server sent no TTL.
func (c *PhoneChallenge) ExpiresAt() time.Time {
	if c.ExpireIn <= 0 {
		return time.Time{}
	}
	return c.IssuedAt.Add(time.Duration(c.ExpireIn) * time.Second)
}

// Expired reports whether the challenge TTL elapsed at now.
func (c *PhoneChallenge) Expired(now time.Time) bool {
	exp := c.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// CreatePhoneChallenge asks the service to send an SMS code to phone.
// The phone format is checked before any network call.
func (s *Session) CreatePhoneChallenge(ctx context.Context, phone string) (*PhoneChallenge, error) {
	const op = "auth.phone.start"

	wire, err := normalizePhone(op, phone)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"phone":               wire,
		"requireTpToBeActive": true,
	}

	issuedAt := s.now()
	var challenge PhoneChallenge
	if err := s.send(ctx, nalogerr.EndpointPhone, op, http.MethodPost, "/v2/auth/challenge/sms/start", "", body, &challenge); err != nil {
		return nil, err
	}
	if challenge.ChallengeToken == "" {
		return nil, nalogerr.Transport(op, errors.New("response has no challenge token"))
	}

	challenge.Phone = wire
	challenge.IssuedAt = issuedAt

	s.logger.Info("phone challenge sent", "expire_in", challenge.ExpireIn)
	return &challenge, nil
}

// CreateNewAccessTokenByPhone verifies the SMS code for a challenge and
// installs the issued token.
func (s *Session) CreateNewAccessTokenByPhone(ctx context.Context, phone, challengeToken, code string) (*Token, error) {
	t, err := s.exchangePhoneCode(ctx, phone, challengeToken, code)
	if err != nil {
		return nil, err
	}
	if err := s.install(t); err != nil {
		return nil, err
	}
	s.logger.Info("authenticated by phone", "inn", t.Profile.INN)
	return t, nil
}

// exchangePhoneCode performs SMS verification without installing the token.
func (s *Session) exchangePhoneCode(ctx context.Context, phone, challengeToken, code string) (*Token, error) {
	const op = "auth.phone.verify"

	wire, err := normalizePhone(op, phone)
	if err != nil {
		return nil, err
	}
	if challengeToken == "" {
		return nil, nalogerr.Phone(op, "challenge token is required")
	}
	code = strings.TrimSpace(code)
	if !smsCodePattern.MatchString(code) {
		return nil, nalogerr.Phone(op, "SMS code must be 4 to 8 digits")
	}

	body := map[string]any{
		"phone":          wire,
		"code":           code,
		"challengeToken": challengeToken,
		"deviceInfo":     s.device,
	}

	var resp tokenResponse
	if err := s.send(ctx, nalogerr.EndpointPhone, op, http.MethodPost, "/v1/auth/challenge/sms/verify", "", body, &resp); err != nil {
		return nil, err
	}

	return tokenFromResponse(op, resp)
}

// Refresh exchanges the refresh token for a new access token.
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx, s.token.Load())
	return err
}

// refresh replaces stale with a fresh token. If stale was already replaced
// by someone else, the current token is returned without a network call.
// Concurrent callers share a single exchange; a caller whose ctx ends stops
// waiting while the exchange completes for the others.
func (s *Session) refresh(ctx context.Context, stale *Token) (*Token, error) {
	const op = "auth.refresh"

	if stale == nil {
		return nil, nalogerr.Unauthorized(op, "not authenticated")
	}
	if cur := s.token.Load(); cur != stale {
		if cur == nil {
			return nil, nalogerr.Unauthorized(op, "session was logged out")
		}
		return cur, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan("refresh", func() (any, error) {
		if cur := s.token.Load(); cur != stale {
			if cur == nil {
				return nil, nalogerr.Unauthorized(op, "session was logged out")
			}
			return cur, nil
		}
		s.refreshing.Store(true)
		defer s.refreshing.Store(false)
		return s.exchangeRefreshToken(detached, stale)
	})

	select {
	case <-ctx.Done():
		return nil, nalogerr.Transport(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	}
}

func (s *Session) exchangeRefreshToken(ctx context.Context, stale *Token) (*Token, error) {
	const op = "auth.refresh"

	if stale.RefreshToken == "" {
		s.token.CompareAndSwap(stale, nil)
		return nil, nalogerr.Unauthorized(op, "token has no refresh token")
	}

	body := map[string]any{
		"deviceInfo":   s.device,
		"refreshToken": stale.RefreshToken,
	}

	var resp tokenResponse
	if err := s.send(ctx, nalogerr.EndpointRefresh, op, http.MethodPost, "/v1/auth/token", "", body, &resp); err != nil {
		if nalogerr.KindOf(err) == nalogerr.KindUnauthorized {
			s.token.CompareAndSwap(stale, nil)
			s.logger.Warn("refresh token rejected, session is unauthenticated", "error", err)
		}
		return nil, err
	}
	if resp.Token == "" {
		return nil, nalogerr.Transport(op, errors.New("refresh response has no token"))
	}

	next := &Token{
		AccessToken:  resp.Token,
		RefreshToken: stale.RefreshToken,
		Profile:      stale.Profile,
	}
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	if !s.token.CompareAndSwap(stale, next) {
		if cur := s.token.Load(); cur != nil {
			return cur, nil
		}
		return nil, nalogerr.Unauthorized(op, "session was logged out")
	}

	if s.storage != nil {
		if err := s.storage.Save(next); err != nil {
			s.logger.Error("failed to persist refreshed token", "error", err)
		}
	}

	s.logger.Info("access token refreshed", "inn", next.Profile.INN)
	return next, nil
}

// Logout forgets the current token and clears storage.
func (s *Session) Logout() error {
	s.token.Store(nil)
	if s.storage == nil {
		return nil
	}
	return s.storage.Clear()
}

// call performs an authenticated request. On a 401 it refreshes once and
// retries once; a second 401 is returned as is.
func (s *Session) call(ctx context.Context, op, method, path string, body, out any) error {
	t := s.token.Load()
	if t == nil {
		return nalogerr.Unauthorized(op, "not authenticated")
	}

	err := s.send(ctx, nalogerr.EndpointAPI, op, method, path, t.AccessToken, body, out)
	if !isStatus(err, http.StatusUnauthorized) {
		return err
	}

	s.logger.Debug("access token rejected, refreshing", "op", op)
	fresh, rerr := s.refresh(ctx, t)
	if rerr != nil {
		return rerr
	}

	return s.send(ctx, nalogerr.EndpointAPI, op, method, path, fresh.AccessToken, body, out)
}

// profileINN returns the INN of the current token.
func (s *Session) profileINN(op string) (string, error) {
	p, ok := s.Profile()
	if !ok {
		return "", nalogerr.Unauthorized(op, "not authenticated")
	}
	if p.INN == "" {
		return "", nalogerr.Unauthorized(op, "token profile has no INN")
	}
	return p.INN, nil
}

func isStatus(err error, status int) bool {
	var nerr *nalogerr.Error
	return errors.As(err, &nerr) && nerr.Status == status
}

func tokenFromResponse(op string, resp tokenResponse) (*Token, error) {
	if resp.Token == "" {
		return nil, nalogerr.Transport(op, errors.New("response has no access token"))
	}
	return &Token{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		Profile:      resp.Profile,
	}, nil
}

// normalizePhone validates phone and strips the leading plus the service
// does not expect.
func normalizePhone(op, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !income.IsValidPhone(phone) {
		return "", nalogerr.Phone(op, fmt.Sprintf("invalid phone number %q", phone))
	}
	return strings.TrimPrefix(phone, "+"), nil
}
