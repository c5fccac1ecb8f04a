// Package session holds the signed-in user and profile for the lifetime of
// the client process: bootstrap from stored tokens, profile loading with
// auto-provisioning, and change listeners.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/logger"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultBootstrapTimeout = 10 * time.Second
	defaultProfileTimeout   = 3 * time.Second
)

// ErrBootstrapTimeout the session check did not finish in time
var ErrBootstrapTimeout = errors.New("session bootstrap timed out")

// State snapshot of the session
type State struct {
	User    *client.Account
	Profile *client.Profile
	Loading bool
	Err     error
}

// SignedIn a user is present
func (s State) SignedIn() bool {
	return s.User != nil
}

// Option customizes a Session
type Option func(*Session)

// WithTimeouts overrides the bootstrap and per-attempt profile timeouts
func WithTimeouts(bootstrap, profile time.Duration) Option {
	return func(s *Session) {
		if bootstrap > 0 {
			s.bootstrapTimeout = bootstrap
		}
		if profile > 0 {
			s.profileTimeout = profile
		}
	}
}

// Session process-wide auth context. State is only changed by its methods.
type Session struct {
	api              *client.API
	store            TokenStore
	bootstrapTimeout time.Duration
	profileTimeout   time.Duration

	mu           sync.RWMutex
	state        State
	gen          uint64
	listeners    map[uint64]func(State)
	nextListener uint64
	signupName   string
	signupPhone  string
}

// New creates a session on api; refreshed tokens are written to store
func New(api *client.API, store TokenStore, opts ...Option) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	s := &Session{
		api:              api,
		store:            store,
		bootstrapTimeout: defaultBootstrapTimeout,
		profileTimeout:   defaultProfileTimeout,
		listeners:        make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	api.OnTokens(func(tokens client.TokenPair) {
		var err error
		if tokens.AccessToken == "" {
			err = store.Clear()
		} else {
			err = store.Save(tokens)
		}
		if err != nil {
			logger.Warnw("session_token_store_failed", "error", err)
		}
	})
	return s
}

// API underlying client
func (s *Session) API() *client.API {
	return s.api
}

// State current snapshot
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// OnChange calls fn after every state change; the returned func unsubscribes
func (s *Session) OnChange(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Bootstrap restores stored tokens and loads the profile. After the
// bootstrap timeout it gives up, signed out and not loading.
func (s *Session) Bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.bootstrapTimeout)
	defer cancel()

	gen := s.begin()
	result := make(chan error, 1)
	go func() { result <- s.restore(ctx, gen) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		s.reset(ErrBootstrapTimeout)
		logger.Warnw("session_bootstrap_timeout", "timeout", s.bootstrapTimeout.String())
		return ErrBootstrapTimeout
	}
}

func (s *Session) restore(ctx context.Context, gen uint64) error {
	tokens, ok, err := s.store.Load()
	if err != nil {
		logger.Warnw("session_token_load_failed", "error", err)
	}
	if !ok {
		s.apply(gen, func(st *State) { *st = State{} })
		return nil
	}
	user, err := accountFromToken(tokens.AccessToken)
	if err != nil {
		_ = s.store.Clear()
		s.apply(gen, func(st *State) { *st = State{} })
		return nil
	}
	s.api.SetTokens(tokens)
	s.apply(gen, func(st *State) { st.User = user })

	profile, err := s.loadProfile(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		s.api.ClearTokens()
		s.apply(gen, func(st *State) { *st = State{} })
		return nil
	}
	s.apply(gen, func(st *State) {
		st.Profile = profile
		st.Loading = false
		st.Err = err
	})
	return err
}

// LoadProfile fetches, provisions when missing, and stores the profile.
// On failure the session continues without a profile.
func (s *Session) LoadProfile(ctx context.Context) (*client.Profile, error) {
	gen := s.currentGen()
	profile, err := s.loadProfile(ctx)
	s.apply(gen, func(st *State) {
		st.Profile = profile
		st.Err = err
	})
	return profile, err
}

// RefreshProfile reloads the profile, keeping the current one on failure
func (s *Session) RefreshProfile(ctx context.Context) (*client.Profile, error) {
	gen := s.currentGen()
	profile, err := s.loadProfile(ctx)
	s.apply(gen, func(st *State) {
		if err == nil {
			st.Profile = profile
		}
		st.Err = err
	})
	return profile, err
}

// SignUp registers and signs in
func (s *Session) SignUp(ctx context.Context, input client.RegisterInput) error {
	s.mu.Lock()
	s.signupName = strings.TrimSpace(input.FullName)
	s.signupPhone = strings.TrimSpace(input.Phone)
	s.mu.Unlock()
	result, err := s.api.Register(ctx, input)
	if err != nil {
		return err
	}
	return s.signedIn(ctx, result)
}

// SignIn signs in with email and password
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.signedIn(ctx, result)
}

func (s *Session) signedIn(ctx context.Context, result *client.Session) error {
	gen := s.begin()
	s.apply(gen, func(st *State) { st.User = result.Account })
	profile := result.Profile
	var err error
	if profile == nil {
		profile, err = s.loadProfile(ctx)
	}
	s.apply(gen, func(st *State) {
		st.Profile = profile
		st.Loading = false
		st.Err = err
	})
	return nil
}

// SignOut revokes the session server side and clears local state
func (s *Session) SignOut(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		logger.Warnw("session_logout_failed", "error", err)
	}
	s.reset(nil)
	return err
}

// UpdateProfile edits name and phone
func (s *Session) UpdateProfile(ctx context.Context, update client.ProfileUpdate) (*client.Profile, error) {
	return s.mutateProfile(func() (*client.Profile, error) { return s.api.UpdateProfile(ctx, update) })
}

// UpdateLocation stores the caller's position
func (s *Session) UpdateLocation(ctx context.Context, lat, lng, accuracy float64) (*client.Profile, error) {
	return s.mutateProfile(func() (*client.Profile, error) { return s.api.UpdateLocation(ctx, lat, lng, accuracy) })
}

// SetAvailability toggles whether the caller takes deliveries
func (s *Session) SetAvailability(ctx context.Context, available bool) (*client.Profile, error) {
	return s.mutateProfile(func() (*client.Profile, error) { return s.api.SetAvailability(ctx, available) })
}

func (s *Session) mutateProfile(fn func() (*client.Profile, error)) (*client.Profile, error) {
	gen := s.currentGen()
	profile, err := fn()
	if err != nil {
		return nil, err
	}
	s.apply(gen, func(st *State) {
		st.Profile = profile
		st.Err = nil
	})
	return profile, nil
}

// loadProfile one attempt, one bare retry, then provisioning when missing
func (s *Session) loadProfile(ctx context.Context) (*client.Profile, error) {
	profile, err := s.fetchProfile(ctx)
	if err != nil && !client.IsNotFound(err) && !errors.Is(err, client.ErrUnauthorized) && ctx.Err() == nil {
		profile, err = s.fetchProfile(ctx)
	}
	if client.IsNotFound(err) {
		return s.provision(ctx)
	}
	if err != nil {
		logger.Warnw("session_profile_load_failed", "error", err)
	}
	return profile, err
}

func (s *Session) fetchProfile(ctx context.Context) (*client.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	defer cancel()
	return s.api.Me(ctx)
}

// provision creates the missing profile; a 409 means another client won, so re-fetch
func (s *Session) provision(ctx context.Context) (*client.Profile, error) {
	s.mu.RLock()
	name, phone := s.signupName, s.signupPhone
	s.mu.RUnlock()

	attempt, cancel := context.WithTimeout(ctx, s.profileTimeout)
	profile, err := s.api.ProvisionProfile(attempt, name, phone)
	cancel()
	if client.IsConflict(err) {
		return s.fetchProfile(ctx)
	}
	if err != nil {
		logger.Warnw("session_profile_provision_failed", "error", err)
		return nil, err
	}
	logger.Infow("session_profile_provisioned", "user_id", profile.ID)
	return profile, nil
}

// begin starts a new generation in the loading state
func (s *Session) begin() uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.Loading = true
	s.state.Err = nil
	snapshot, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, snapshot)
	return gen
}

// reset signs out locally; results of older generations are dropped
func (s *Session) reset(err error) {
	s.mu.Lock()
	s.gen++
	s.state = State{Err: err}
	s.signupName, s.signupPhone = "", ""
	snapshot, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, snapshot)
}

func (s *Session) currentGen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Session) apply(gen uint64, fn func(*State)) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	fn(&s.state)
	snapshot, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, snapshot)
}

func (s *Session) snapshotLocked() State {
	st := s.state
	if st.User != nil {
		user := *st.User
		st.User = &user
	}
	if st.Profile != nil {
		profile := *st.Profile
		st.Profile = &profile
	}
	return st
}

func (s *Session) listenersLocked() []func(State) {
	out := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st)
	}
}

type tokenClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// accountFromToken reads the identity claims; the server still validates the token
func accountFromToken(token string) (*client.Account, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, errors.New("token has no user id")
	}
	return &client.Account{ID: claims.UserID, Email: claims.Email}, nil
}
