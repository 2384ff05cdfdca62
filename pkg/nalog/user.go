package nalog

import (
	"context"
	"net/http"
)

// UserAPI reads the taxpayer account.
type UserAPI struct {
	session *Session
}

// Get fetches the account of the authenticated taxpayer.
func (a *UserAPI) Get(ctx context.Context) (*User, error) {
	var user User
	if err := a.session.call(ctx, "user.get", http.MethodGet, "/v1/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
