package nalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

const maxResponseSize = 4 << 20

// Doer sends HTTP requests. *http.Client satisfies it; tests and callers with
// special transport needs can substitute their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorResponse is the error body returned by the tax service.
type ErrorResponse struct {
	Code             string          `json:"code"`
	Message          string          `json:"message"`
	ExceptionMessage string          `json:"exceptionMessage,omitempty"`
	AdditionalInfo   json.RawMessage `json:"additionalInfo,omitempty"`
}

// send performs one request. accessToken may be empty for auth endpoints.
// out may be nil, a *json.RawMessage, or any JSON-decodable pointer.
func (s *Session) send(ctx context.Context, endpoint nalogerr.Endpoint, op, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nalogerr.Transport(op, fmt.Errorf("failed to encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nalogerr.Transport(op, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", s.device.MetaDetails.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	s.logger.Debug("nalog request", "op", op, "method", method, "path", path)

	resp, err := s.http.Do(req)
	if err != nil {
		return nalogerr.Transport(op, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nalogerr.Transport(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(endpoint, op, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nalogerr.Transport(op, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

// parseError builds a typed error from a non-2xx response.
func parseError(endpoint nalogerr.Endpoint, op string, status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return nalogerr.FromStatus(endpoint, op, status, "", truncate(strings.TrimSpace(string(body)), 200))
	}

	message := errResp.Message
	if message == "" {
		message = errResp.ExceptionMessage
	}

	return nalogerr.FromStatus(endpoint, op, status, errResp.Code, message)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
