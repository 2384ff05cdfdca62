// Command npd-emulator runs a local emulator of the self-employed tax
// service API for development and testing.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pigeonworks-llc/go-portalloc/pkg/ports"

	"github.com/pigeonworks-llc/npd-client/emulator/api"
	"github.com/pigeonworks-llc/npd-client/emulator/store"
)

const (
	defaultPort     = "8090"
	defaultDBPath   = "./data/npd-emulator.db"
	defaultINN      = "500100732259"
	defaultPassword = "password"
	defaultPhone    = "79000000000"
	defaultSMSCode  = "123456"
)

func main() {
	// Setup structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	port := getEnvOrDefault("PORT", defaultPort)
	if port == "auto" {
		// Pick a free port, e.g. when several emulators run side by side.
		allocated, err := ports.NewAllocator(nil).AllocateRange(1)
		if err != nil {
			slog.Error("failed to allocate port", "error", err)
			os.Exit(1)
		}
		port = fmt.Sprintf("%d", allocated)
	}
	dbPath := getEnvOrDefault("DB_PATH", defaultDBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err, "db_path", dbPath)
		os.Exit(1)
	}

	st, err := store.New(dbPath)
	if err != nil {
		slog.Error("failed to initialize store", "error", err, "db_path", dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	slog.Info("database initialized", "db_path", dbPath)

	if err := seedAccount(st); err != nil {
		slog.Error("failed to seed account", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(st, api.Config{
		SMSCode: getEnvOrDefault("EMULATOR_SMS_CODE", defaultSMSCode),
		Logger:  logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%s", port)
	slog.Info("starting tax service emulator", "addr", addr, "base_url", fmt.Sprintf("http://localhost:%s/api", port))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("shutting down server")
		if err := httpServer.Close(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// seedAccount registers the demo taxpayer unless it already exists.
func seedAccount(st *store.Store) error {
	inn := getEnvOrDefault("EMULATOR_INN", defaultINN)

	if _, err := st.GetAccount(inn); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	acc := &store.Account{
		INN:              inn,
		Password:         getEnvOrDefault("EMULATOR_PASSWORD", defaultPassword),
		Phone:            getEnvOrDefault("EMULATOR_PHONE", defaultPhone),
		DisplayName:      getEnvOrDefault("EMULATOR_DISPLAY_NAME", "Тестовый Налогоплательщик"),
		Email:            "taxpayer@example.com",
		RegistrationDate: time.Now().UTC(),
	}
	if err := st.PutAccount(acc); err != nil {
		return err
	}

	slog.Info("seeded account", "inn", acc.INN, "phone", acc.Phone)
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
