package api

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/pigeonworks-llc/npd-client/emulator/store"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var phonePattern = regexp.MustCompile(`^[1-9]\d{10,14}$`)

type deviceInfo struct {
	SourceDeviceID string `json:"sourceDeviceId"`
	SourceType     string `json:"sourceType"`
	AppVersion     string `json:"appVersion"`
	MetaDetails    struct {
		UserAgent string `json:"userAgent"`
	} `json:"metaDetails"`
}

type profile struct {
	INN         string `json:"inn"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// TokenResponse is returned by every endpoint that issues tokens.
type TokenResponse struct {
	RefreshToken          string   `json:"refreshToken"`
	RefreshTokenExpiresIn *string  `json:"refreshTokenExpiresIn"`
	Token                 string   `json:"token"`
	TokenExpireIn         string   `json:"tokenExpireIn"`
	Profile               *profile `json:"profile,omitempty"`
}

// HandleLogin handles POST /api/v1/auth/lkfl.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string     `json:"username"`
		Password   string     `json:"password"`
		DeviceInfo deviceInfo `json:"deviceInfo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}
	if req.DeviceInfo.SourceDeviceID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "deviceInfo.sourceDeviceId is required")
		return
	}

	acc, err := s.store.GetAccount(req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get account")
		return
	}
	if acc == nil || acc.Password != req.Password {
		writeJSONError(w, http.StatusBadRequest, "authentication.failed", "Указан неверный ИНН или пароль")
		return
	}

	s.issue(w, acc, req.DeviceInfo.SourceDeviceID)
}

// HandleChallengeStart handles POST /api/v2/auth/challenge/sms/start.
func (s *Server) HandleChallengeStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone               string `json:"phone"`
		RequireTpToBeActive bool   `json:"requireTpToBeActive"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		writeJSONError(w, http.StatusUnprocessableEntity, "phone.invalid", "Некорректный номер телефона")
		return
	}

	acc, err := s.store.FindAccountByPhone(req.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "taxpayer.not.found", "Налогоплательщик не найден")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to find account")
		return
	}

	now := s.now()
	challenge, err := s.store.CreateChallenge(req.Phone, acc.INN, now, s.config.ChallengeTTL)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to create challenge")
		return
	}

	s.logger.Info("sms challenge issued", "phone", req.Phone, "code", s.config.SMSCode)
	writeJSON(w, http.StatusOK, map[string]any{
		"challengeToken": challenge.Token,
		"expireDate":     challenge.ExpiresAt.Format(timeLayout),
		"expireIn":       int(s.config.ChallengeTTL / time.Second),
	})
}

// HandleChallengeVerify handles POST /api/v1/auth/challenge/sms/verify.
// A wrong code leaves the challenge usable; a correct one consumes it.
func (s *Server) HandleChallengeVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone          string     `json:"phone"`
		Code           string     `json:"code"`
		ChallengeToken string     `json:"challengeToken"`
		DeviceInfo     deviceInfo `json:"deviceInfo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}

	challenge, err := s.store.GetChallenge(req.ChallengeToken, req.Phone, s.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusBadRequest, "challenge.not.found", "Код подтверждения не запрашивался")
		return
	case errors.Is(err, store.ErrExpired):
		writeJSONError(w, http.StatusBadRequest, "challenge.expired", "Срок действия кода истек")
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get challenge")
		return
	}

	if req.Code != s.config.SMSCode {
		writeJSONError(w, http.StatusUnprocessableEntity, "registration.sms.verification.not.valid", "Указан неверный код")
		return
	}

	if err := s.store.ConsumeChallenge(challenge.Token); err != nil {
		writeJSONError(w, http.StatusBadRequest, "challenge.not.found", "Код подтверждения уже использован")
		return
	}

	acc, err := s.store.GetAccount(challenge.INN)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get account")
		return
	}

	s.issue(w, acc, req.DeviceInfo.SourceDeviceID)
}

// HandleRefresh handles POST /api/v1/auth/token. Refresh tokens rotate on
// every use and are bound to the device they were issued to.
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Increment(CounterRefresh); err != nil {
		s.logger.Error("failed to count refresh", "error", err)
	}

	var req struct {
		DeviceInfo   deviceInfo `json:"deviceInfo"`
		RefreshToken string     `json:"refreshToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}

	pair, inn, err := s.store.RotateRefreshToken(req.RefreshToken, req.DeviceInfo.SourceDeviceID,
		s.now(), s.config.AccessTokenTTL, s.config.RefreshTokenTTL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			writeJSONError(w, http.StatusBadRequest, "refresh.token.invalid", "Refresh token is not valid")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to refresh token")
		return
	}

	s.logger.Info("token refreshed", "inn", inn)
	writeJSON(w, http.StatusOK, s.tokenResponse(pair, nil))
}

func (s *Server) issue(w http.ResponseWriter, acc *store.Account, deviceID string) {
	pair, err := s.store.IssueTokens(acc.INN, deviceID, s.now(), s.config.AccessTokenTTL, s.config.RefreshTokenTTL)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to issue token")
		return
	}

	s.logger.Info("token issued", "inn", acc.INN)
	writeJSON(w, http.StatusOK, s.tokenResponse(pair, &profile{
		INN:         acc.INN,
		DisplayName: acc.DisplayName,
		Email:       acc.Email,
		Phone:       acc.Phone,
	}))
}

func (s *Server) tokenResponse(pair *store.TokenPair, p *profile) TokenResponse {
	return TokenResponse{
		RefreshToken:  pair.RefreshToken,
		Token:         pair.AccessToken,
		TokenExpireIn: s.now().Add(s.config.AccessTokenTTL).Format(timeLayout),
		Profile:       p,
	}
}
