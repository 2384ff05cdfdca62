// Package nalog provides a client for the "Мой налог" self-employed tax
// service: authentication and session tokens, income receipts, receipt
// retrieval and cancellation, and read-only profile, payment and tax queries.
package nalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://lknpd.nalog.ru/api"

// ClientConfig represents the configuration for the tax service client.
type ClientConfig struct {
	BaseURL string // Default: DefaultBaseURL
	// StoragePath is a token bundle file restored at construction and
	// rewritten after every authentication and refresh. Ignored when
	// Storage is set.
	StoragePath string
	Storage     TokenStorage
	// DeviceID must be stable across runs for stored tokens to refresh.
	// Default: a random ID.
	DeviceID   string
	UserAgent  string
	HTTPClient Doer          // Default: *http.Client with Timeout
	Timeout    time.Duration // Default: 30 seconds
	Logger     *slog.Logger  // Default: slog.Default()
}

// Client is the entry point: it owns one Session and hands out the typed
// sub-clients operating on it.
type Client struct {
	session *Session
}

// NewClient creates a client and restores a stored token when storage is
// configured.
func NewClient(config ClientConfig) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	storage := config.Storage
	if storage == nil && config.StoragePath != "" {
		storage = NewFileStorage(config.StoragePath)
	}

	session := &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		device:  newDeviceInfo(config.DeviceID, config.UserAgent),
		storage: storage,
		logger:  logger.With("component", "nalog"),
		now:     time.Now,
	}

	if err := session.restore(); err != nil {
		return nil, fmt.Errorf("failed to restore token: %w", err)
	}

	return &Client{session: session}, nil
}

// Session returns the session shared by all sub-clients.
func (c *Client) Session() *Session { return c.session }

// Authenticate installs a previously issued token bundle.
func (c *Client) Authenticate(ctx context.Context, payload []byte) error {
	return c.session.Authenticate(ctx, payload)
}

// CreateNewAccessToken logs in with INN and password.
func (c *Client) CreateNewAccessToken(ctx context.Context, inn, password string) (*Token, error) {
	return c.session.CreateNewAccessToken(ctx, inn, password)
}

// CreatePhoneChallenge starts a phone login.
func (c *Client) CreatePhoneChallenge(ctx context.Context, phone string) (*PhoneChallenge, error) {
	return c.session.CreatePhoneChallenge(ctx, phone)
}

// CreateNewAccessTokenByPhone completes a phone login.
func (c *Client) CreateNewAccessTokenByPhone(ctx context.Context, phone, challengeToken, code string) (*Token, error) {
	return c.session.CreateNewAccessTokenByPhone(ctx, phone, challengeToken, code)
}

// NewPhoneAuthenticator returns a fresh phone-login state machine.
func (c *Client) NewPhoneAuthenticator() *PhoneAuthenticator {
	return NewPhoneAuthenticator(c.session)
}

// Logout forgets the token and clears storage.
func (c *Client) Logout() error { return c.session.Logout() }

// Income returns the income sub-client.
func (c *Client) Income() *IncomeAPI { return &IncomeAPI{session: c.session} }

// Receipt returns the receipt sub-client.
func (c *Client) Receipt() *ReceiptAPI { return &ReceiptAPI{session: c.session} }

// User returns the user sub-client.
func (c *Client) User() *UserAPI { return &UserAPI{session: c.session} }

// PaymentType returns the payment-type sub-client.
func (c *Client) PaymentType() *PaymentTypeAPI { return &PaymentTypeAPI{session: c.session} }

// Tax returns the tax sub-client.
func (c *Client) Tax() *TaxAPI { return &TaxAPI{session: c.session} }
