package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parcelpal/internal/client"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]*atomic.Int32
	srv      *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{handlers: map[string]http.HandlerFunc{}, hits: map[string]*atomic.Int32{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		h := f.handlers[key]
		counter := f.hits[key]
		f.mu.Unlock()
		if counter != nil {
			counter.Add(1)
		}
		if h == nil {
			writeEnvelope(w, client.CodeNotFound, "route not found", nil)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) handle(method, path string, h http.HandlerFunc) {
	key := method + " " + path
	f.mu.Lock()
	f.handlers[key] = h
	if f.hits[key] == nil {
		f.hits[key] = &atomic.Int32{}
	}
	f.mu.Unlock()
}

func (f *fakeServer) count(method, path string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.hits[method+" "+path]; c != nil {
		return c.Load()
	}
	return 0
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status_code": code,
		"msg":         msg,
		"data":        data,
	})
}

func testToken(t *testing.T, userID uint, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"typ":     "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("session-test"))
	require.NoError(t, err)
	return signed
}

func testProfile(id uint, name string) client.Profile {
	return client.Profile{ID: id, Email: "asha@example.com", FullName: name, Phone: "9876543210"}
}

func authResponse(t *testing.T, id uint, profile *client.Profile) map[string]interface{} {
	return map[string]interface{}{
		"account": client.Account{ID: id, Email: "asha@example.com"},
		"profile": profile,
		"tokens": client.TokenPair{
			AccessToken:  testToken(t, id, "asha@example.com"),
			RefreshToken: "refresh-1",
		},
	}
}

func TestBootstrapWithoutStoredTokensIsSignedOut(t *testing.T) {
	f := newFakeServer(t)
	s := New(client.NewAPI(f.srv.URL), &MemoryStore{})

	require.NoError(t, s.Bootstrap(context.Background()))
	st := s.State()
	assert.False(t, st.SignedIn())
	assert.False(t, st.Loading)
	assert.Nil(t, st.Profile)
	assert.Zero(t, f.count(http.MethodGet, "/api/v1/users/me"))
}

func TestBootstrapRestoresUserAndProfile(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		writeEnvelope(w, client.CodeOK, "success", testProfile(7, "Asha"))
	})
	store := &MemoryStore{}
	require.NoError(t, store.Save(client.TokenPair{AccessToken: testToken(t, 7, "asha@example.com"), RefreshToken: "r"}))

	s := New(client.NewAPI(f.srv.URL), store)
	require.NoError(t, s.Bootstrap(context.Background()))

	st := s.State()
	require.True(t, st.SignedIn())
	assert.Equal(t, uint(7), st.User.ID)
	assert.Equal(t, "asha@example.com", st.User.Email)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Asha", st.Profile.FullName)
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
}

func TestBootstrapTimeoutProceedsSignedOut(t *testing.T) {
	f := newFakeServer(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	store := &MemoryStore{}
	require.NoError(t, store.Save(client.TokenPair{AccessToken: testToken(t, 7, "asha@example.com")}))

	s := New(client.NewAPI(f.srv.URL), store, WithTimeouts(50*time.Millisecond, time.Second))
	started := time.Now()
	err := s.Bootstrap(context.Background())

	require.ErrorIs(t, err, ErrBootstrapTimeout)
	assert.Less(t, time.Since(started), 2*time.Second)
	st := s.State()
	assert.False(t, st.SignedIn())
	assert.False(t, st.Loading)
	assert.ErrorIs(t, st.Err, ErrBootstrapTimeout)
}

func TestBootstrapUnauthorizedSignsOut(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeUnauthorized, "token expired", nil)
	})
	store := &MemoryStore{}
	require.NoError(t, store.Save(client.TokenPair{AccessToken: testToken(t, 7, "asha@example.com")}))

	s := New(client.NewAPI(f.srv.URL), store)
	require.NoError(t, s.Bootstrap(context.Background()))

	assert.False(t, s.State().SignedIn())
	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok, "stored tokens are dropped")
	assert.Equal(t, int32(1), f.count(http.MethodGet, "/api/v1/users/me"), "401 is not retried")
}

func TestBootstrapDropsUnreadableToken(t *testing.T) {
	f := newFakeServer(t)
	store := &MemoryStore{}
	require.NoError(t, store.Save(client.TokenPair{AccessToken: "not-a-jwt"}))

	s := New(client.NewAPI(f.srv.URL), store)
	require.NoError(t, s.Bootstrap(context.Background()))
	assert.False(t, s.State().SignedIn())
	_, ok, _ := store.Load()
	assert.False(t, ok)
}

func TestSignUpProvisionsMissingProfileWithSignupName(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodPost, "/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, nil))
	})
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeNotFound, "profile not found", nil)
	})
	var provisionedName atomic.Value
	f.handle(http.MethodPost, "/api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		provisionedName.Store(body["full_name"])
		writeEnvelope(w, client.CodeOK, "success", testProfile(3, body["full_name"]))
	})

	store := &MemoryStore{}
	s := New(client.NewAPI(f.srv.URL), store)
	err := s.SignUp(context.Background(), client.RegisterInput{
		Email:    "asha@example.com",
		Password: "secret123",
		FullName: " Asha Rao ",
	})
	require.NoError(t, err)

	st := s.State()
	require.True(t, st.SignedIn())
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Asha Rao", provisionedName.Load())
	assert.Equal(t, "Asha Rao", st.Profile.FullName)
	assert.Equal(t, int32(1), f.count(http.MethodGet, "/api/v1/users/me"), "not-found is not retried")

	tokens, ok, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
}

func TestProvisionConflictRefetchesProfile(t *testing.T) {
	f := newFakeServer(t)
	var created atomic.Bool
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, nil))
	})
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if !created.Load() {
			writeEnvelope(w, client.CodeNotFound, "profile not found", nil)
			return
		}
		writeEnvelope(w, client.CodeOK, "success", testProfile(3, "Created Elsewhere"))
	})
	f.handle(http.MethodPost, "/api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		created.Store(true)
		writeEnvelope(w, client.CodeConflict, "profile already exists", nil)
	})

	s := New(client.NewAPI(f.srv.URL), nil)
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))

	st := s.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Created Elsewhere", st.Profile.FullName)
	assert.Equal(t, int32(2), f.count(http.MethodGet, "/api/v1/users/me"))
	assert.Equal(t, int32(1), f.count(http.MethodPost, "/api/v1/users"))
}

func TestLoadProfileRetriesOnce(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, nil))
	})
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeEnvelope(w, client.CodeInternal, "database unavailable", nil)
			return
		}
		writeEnvelope(w, client.CodeOK, "success", testProfile(3, "Asha"))
	})

	s := New(client.NewAPI(f.srv.URL), nil)
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))

	st := s.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Asha", st.Profile.FullName)
	assert.NoError(t, st.Err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoadProfileFailureLeavesSessionDegraded(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, nil))
	})
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeInternal, "database unavailable", nil)
	})

	s := New(client.NewAPI(f.srv.URL), nil)
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))

	st := s.State()
	assert.True(t, st.SignedIn())
	assert.Nil(t, st.Profile)
	assert.False(t, st.Loading)
	require.Error(t, st.Err)
	assert.Equal(t, client.CodeInternal, client.CodeOf(st.Err))
	assert.Equal(t, int32(2), f.count(http.MethodGet, "/api/v1/users/me"))
}

func TestRefreshProfileKeepsCurrentOnFailure(t *testing.T) {
	f := newFakeServer(t)
	var fail atomic.Bool
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, &client.Profile{ID: 3, FullName: "Asha"}))
	})
	f.handle(http.MethodGet, "/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeEnvelope(w, client.CodeInternal, "database unavailable", nil)
			return
		}
		writeEnvelope(w, client.CodeOK, "success", testProfile(3, "Asha Rao"))
	})

	s := New(client.NewAPI(f.srv.URL), nil)
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))
	assert.Zero(t, f.count(http.MethodGet, "/api/v1/users/me"), "login profile is used as is")

	_, err := s.RefreshProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", s.State().Profile.FullName)

	fail.Store(true)
	_, err = s.RefreshProfile(context.Background())
	require.Error(t, err)
	require.NotNil(t, s.State().Profile)
	assert.Equal(t, "Asha Rao", s.State().Profile.FullName)
}

func TestSetAvailabilityUpdatesProfileOnlyOnSuccess(t *testing.T) {
	f := newFakeServer(t)
	var reject atomic.Bool
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, &client.Profile{ID: 3, FullName: "Asha"}))
	})
	f.handle(http.MethodPut, "/api/v1/users/me/availability", func(w http.ResponseWriter, r *http.Request) {
		if reject.Load() {
			writeEnvelope(w, client.CodeBadRequest, "invalid request", nil)
			return
		}
		p := testProfile(3, "Asha")
		p.IsAvailable = true
		writeEnvelope(w, client.CodeOK, "success", p)
	})

	s := New(client.NewAPI(f.srv.URL), nil)
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))

	_, err := s.SetAvailability(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, s.State().Profile.IsAvailable)

	reject.Store(true)
	_, err = s.SetAvailability(context.Background(), false)
	require.Error(t, err)
	assert.True(t, s.State().Profile.IsAvailable)
}

func TestSignOutClearsStateAndNotifiesListeners(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, &client.Profile{ID: 3, FullName: "Asha"}))
	})
	f.handle(http.MethodPost, "/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", nil)
	})

	store := &MemoryStore{}
	s := New(client.NewAPI(f.srv.URL), store)

	var mu sync.Mutex
	var seen []State
	unsubscribe := s.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))
	require.NoError(t, s.SignOut(context.Background()))

	assert.False(t, s.State().SignedIn())
	assert.Empty(t, s.API().Tokens().AccessToken)
	_, ok, _ := store.Load()
	assert.False(t, ok)

	mu.Lock()
	count := len(seen)
	require.NotZero(t, count)
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[count-1].SignedIn())
	mu.Unlock()

	unsubscribe()
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))
	mu.Lock()
	assert.Len(t, seen, count, "no calls after unsubscribe")
	mu.Unlock()
}

func TestStateIsACopy(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodPost, "/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, client.CodeOK, "success", authResponse(t, 3, &client.Profile{ID: 3, FullName: "Asha"}))
	})
	s := New(client.NewAPI(f.srv.URL), nil)
	require.NoError(t, s.SignIn(context.Background(), "asha@example.com", "secret123"))

	st := s.State()
	st.Profile.FullName = "Changed"
	assert.Equal(t, "Asha", s.State().Profile.FullName)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "nested", "session.json")}

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	pair := client.TokenPair{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save(pair))
	loaded, ok, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, pair.AccessToken, loaded.AccessToken)
	assert.Equal(t, pair.RefreshToken, loaded.RefreshToken)

	require.NoError(t, store.Save(client.TokenPair{}))
	_, ok, err = store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Clear())
}
