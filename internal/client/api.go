// Package client is the typed SDK for the parcelpal api: envelope decoding,
// token refresh and one method per endpoint. The session, lifecycle, chat and
// poll subpackages build the client-side workflows on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/parcelpal/internal/logger"
)

const (
	apiPrefix      = "/api/v1"
	defaultTimeout = 15 * time.Second
)

// API http client for /api/v1
type API struct {
	baseURL   string
	http      *http.Client
	userAgent string

	mu       sync.RWMutex
	tokens   TokenPair
	onTokens func(TokenPair)

	refreshMu sync.Mutex
}

// Option customizes an API
type Option func(*API)

// WithHTTPClient replaces the default http client
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		if c != nil {
			a.http = c
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(a *API) {
		a.userAgent = strings.TrimSpace(ua)
	}
}

// NewAPI creates a client for baseURL (scheme://host[:port])
func NewAPI(baseURL string, opts ...Option) *API {
	a := &API{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FromConfig creates a client from loaded settings
func FromConfig(cfg *Config) *API {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewAPI(cfg.APIURL,
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithUserAgent(cfg.UserAgent),
	)
}

// BaseURL server root
func (a *API) BaseURL() string {
	return a.baseURL
}

// Tokens current token pair
func (a *API) Tokens() TokenPair {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens
}

// SetTokens installs a stored pair (session restore)
func (a *API) SetTokens(tokens TokenPair) {
	a.mu.Lock()
	a.tokens = tokens
	fn := a.onTokens
	a.mu.Unlock()
	if fn != nil {
		fn(tokens)
	}
}

// ClearTokens forgets the session
func (a *API) ClearTokens() {
	a.SetTokens(TokenPair{})
}

// OnTokens is called whenever the pair changes, including refreshes
func (a *API) OnTokens(fn func(TokenPair)) {
	a.mu.Lock()
	a.onTokens = fn
	a.mu.Unlock()
}

func (a *API) accessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.AccessToken
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// request one api call; body is rebuilt for the retry after a refresh
type request struct {
	method string
	path   string
	query  map[string]string
	json   interface{}
	build  func() (io.Reader, string, error)
	public bool
}

func (a *API) call(ctx context.Context, req request, dest interface{}) (*Pagination, error) {
	token := ""
	if !req.public {
		token = a.accessToken()
	}
	env, err := a.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if env.StatusCode == CodeUnauthorized && !req.public && a.Tokens().RefreshToken != "" {
		if rerr := a.refreshAfter(ctx, token); rerr != nil {
			logger.Debugw("client_refresh_failed", "path", req.path, "error", rerr)
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, apiError(req.path, env))
		}
		env, err = a.send(ctx, req, a.accessToken())
		if err != nil {
			return nil, err
		}
		if env.StatusCode == CodeUnauthorized {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, apiError(req.path, env))
		}
	}
	if env.StatusCode != CodeOK {
		return nil, apiError(req.path, env)
	}
	if dest != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrResponseInvalid, req.path, err)
		}
	}
	return env.Pagination, nil
}

func apiError(path string, env *envelope) *APIError {
	return &APIError{Code: env.StatusCode, Message: env.Msg, Path: path}
}

func (a *API) send(ctx context.Context, req request, token string) (*envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.build != nil:
		b, ct, err := req.build()
		if err != nil {
			return nil, err
		}
		body, contentType = b, ct
	case req.json != nil:
		raw, err := json.Marshal(req.json)
		if err != nil {
			return nil, fmt.Errorf("encode %s body failed: %w", req.path, err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, a.baseURL+apiPrefix+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	if len(req.query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.query {
			if v != "" {
				q.Set(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if a.userAgent != "" {
		httpReq.Header.Set("User-Agent", a.userAgent)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNetwork, req.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &envelope{StatusCode: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}, nil
		}
		return nil, fmt.Errorf("%w: %s returned %d", ErrResponseInvalid, req.path, resp.StatusCode)
	}
	if env.StatusCode == CodeOK && resp.StatusCode >= http.StatusBadRequest {
		env.StatusCode = resp.StatusCode
	}
	return &env, nil
}

// refreshAfter refreshes unless another caller already replaced stale
func (a *API) refreshAfter(ctx context.Context, stale string) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	if current := a.accessToken(); current != "" && current != stale {
		return nil
	}
	_, err := a.Refresh(ctx)
	return err
}

func (a *API) get(ctx context.Context, path string, query map[string]string, dest interface{}) error {
	_, err := a.call(ctx, request{method: http.MethodGet, path: path, query: query}, dest)
	return err
}

func (a *API) put(ctx context.Context, path string, body, dest interface{}) error {
	_, err := a.call(ctx, request{method: http.MethodPut, path: path, json: body}, dest)
	return err
}

func (a *API) post(ctx context.Context, path string, body, dest interface{}) error {
	_, err := a.call(ctx, request{method: http.MethodPost, path: path, json: body}, dest)
	return err
}
