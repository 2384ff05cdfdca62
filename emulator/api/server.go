// Package api implements the HTTP surface of the tax service emulator.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/pigeonworks-llc/npd-client/emulator/store"
)

// CounterRefresh counts calls of the refresh endpoint.
const CounterRefresh = "refresh"

// Config tunes the emulated service.
type Config struct {
	SMSCode         string          // Default: "123456"
	ChallengeTTL    time.Duration   // Default: 2 minutes
	AccessTokenTTL  time.Duration   // Default: 1 hour
	RefreshTokenTTL time.Duration   // Default: 30 days
	MaxYearIncome   decimal.Decimal // Default: 2 400 000
	Now             func() time.Time
	Logger          *slog.Logger
}

// Server serves the emulated API.
type Server struct {
	store  *store.Store
	config Config
	logger *slog.Logger
}

// NewServer creates a server over st, filling unset config with defaults.
func NewServer(st *store.Store, config Config) *Server {
	if config.SMSCode == "" {
		config.SMSCode = "123456"
	}
	if config.ChallengeTTL == 0 {
		config.ChallengeTTL = 2 * time.Minute
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = time.Hour
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if config.MaxYearIncome.IsZero() {
		config.MaxYearIncome = decimal.NewFromInt(2_400_000)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		store:  st,
		config: config,
		logger: config.Logger,
	}
}

// Routes returns the router. Every service path lives under /api.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (no authentication required).
		r.Post("/v1/auth/lkfl", s.HandleLogin)
		r.Post("/v2/auth/challenge/sms/start", s.HandleChallengeStart)
		r.Post("/v1/auth/challenge/sms/verify", s.HandleChallengeVerify)
		r.Post("/v1/auth/token", s.HandleRefresh)

		// Printable receipts are public links.
		r.Get("/v1/receipt/{inn}/{uuid}/print", s.HandleReceiptPrint)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.store, s.config.Now))

			r.Post("/v1/income", s.HandleIncome)
			r.Post("/v1/cancel", s.HandleCancel)
			r.Get("/v1/receipt/{inn}/{uuid}/json", s.HandleReceiptJSON)

			r.Get("/v1/user", s.HandleUser)
			r.Get("/v1/payment-type/table", s.HandlePaymentTypes)
			r.Get("/v1/taxes", s.HandleTaxes)
			r.Post("/v1/taxes/history", s.HandleTaxHistory)
			r.Post("/v1/taxes/payments", s.HandleTaxPayments)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/emulator/stats", s.HandleStats)

	return r
}

// HandleStats reports emulator counters.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	refreshes, err := s.store.Counter(CounterRefresh)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to read counters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshCalls": refreshes})
}

func (s *Server) now() time.Time {
	return s.config.Now()
}
