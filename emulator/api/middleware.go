package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pigeonworks-llc/npd-client/emulator/store"
)

type contextKey string

const (
	contextKeyToken contextKey = "token"
)

// AuthMiddleware validates bearer access tokens and stores the token record
// in the request context.
func AuthMiddleware(st *store.Store, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}

			token, err := st.ValidateAccessToken(parts[1], now())
			if err != nil {
				if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to validate token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromContext returns the token record set by AuthMiddleware.
func tokenFromContext(ctx context.Context) *store.AccessToken {
	t, _ := ctx.Value(contextKeyToken).(*store.AccessToken)
	return t
}

// ErrorResponse is the error body of the service.
type ErrorResponse struct {
	Code             string         `json:"code"`
	Message          string         `json:"message"`
	ExceptionMessage string         `json:"exceptionMessage,omitempty"`
	AdditionalInfo   map[string]any `json:"additionalInfo,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
