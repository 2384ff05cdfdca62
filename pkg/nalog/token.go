package nalog

import (
	"encoding/json"
	"fmt"

	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

// Profile is the taxpayer identity attached to a Token.
type Profile struct {
	INN         string `json:"inn"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Token is an issued credential bundle. It is never mutated after issue; a
// refresh produces a new Token.
type Token struct {
	AccessToken  string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	Profile      Profile `json:"profile"`
}

// ParseToken decodes a token bundle as produced by MarshalToken, by the
// FileStorage, or by the auth endpoints (extra fields are dropped).
func ParseToken(data []byte) (*Token, error) {
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &nalogerr.Error{
			Kind:    nalogerr.KindUnauthorized,
			Op:      "auth.parse",
			Message: "malformed token bundle",
			Err:     err,
		}
	}
	if t.AccessToken == "" {
		return nil, nalogerr.Unauthorized("auth.parse", "token bundle has no access token")
	}
	return &t, nil
}

// MarshalToken encodes t in the token bundle shape.
func MarshalToken(t *Token) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("nil token")
	}
	return json.Marshal(t)
}

// tokenResponse is what the auth endpoints return. Only the bundle fields
// are kept.
type tokenResponse struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	Profile      Profile `json:"profile"`
}
