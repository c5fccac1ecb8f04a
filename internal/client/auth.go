package client

import (
	"context"
	"net/http"
	"strings"
)

// RegisterInput signup form
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Register creates an account and installs its tokens
func (a *API) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	var session Session
	if _, err := a.call(ctx, request{method: http.MethodPost, path: "/auth/register", json: input, public: true}, &session); err != nil {
		return nil, err
	}
	a.SetTokens(session.Tokens)
	return &session, nil
}

// Login signs in and installs the tokens
func (a *API) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	var session Session
	if _, err := a.call(ctx, request{method: http.MethodPost, path: "/auth/login", json: body, public: true}, &session); err != nil {
		return nil, err
	}
	a.SetTokens(session.Tokens)
	return &session, nil
}

// Refresh exchanges the refresh token for a new pair
func (a *API) Refresh(ctx context.Context) (*Session, error) {
	refresh := a.Tokens().RefreshToken
	if refresh == "" {
		return nil, ErrUnauthorized
	}
	var session Session
	body := map[string]string{"refresh_token": refresh}
	if _, err := a.call(ctx, request{method: http.MethodPost, path: "/auth/refresh", json: body, public: true}, &session); err != nil {
		return nil, err
	}
	a.SetTokens(session.Tokens)
	return &session, nil
}

// Logout revokes every token of the account and forgets the local pair
func (a *API) Logout(ctx context.Context) error {
	err := a.post(ctx, "/auth/logout", nil, nil)
	a.ClearTokens()
	return err
}
