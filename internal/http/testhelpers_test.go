package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edumanage/edumanage/internal/adapters/memstore"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	mockauth "github.com/edumanage/edumanage/internal/mocks/auth"
	"github.com/edumanage/edumanage/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// navSpy records destinations the navigator fires.
type navSpy struct {
	mu    sync.Mutex
	dests []string
}

func (s *navSpy) navigate(dest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dests = append(s.dests, dest)
}

func (s *navSpy) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dests...)
}

// routerFixture wires a full router over in-memory adapters.
type routerFixture struct {
	creds    *mockauth.MockCredentialStore
	profiles *mockauth.MemoryProfileStore
	svc      *service.AuthService
	nav      *service.Navigator
	spy      *navSpy
	handler  http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	creds := mockauth.NewMockCredentialStore()
	profiles := mockauth.NewMemoryProfileStore()
	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Durable:   memstore.NewSessionStoreWithTier(domainauth.TierDurable),
		Ephemeral: memstore.NewSessionStore(),
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Credentials: creds,
		Profiles:    profiles,
		Sessions:    sessions,
		ContextID:   "ctx-http",
		BootPath:    domainauth.PathRoot,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	spy := &navSpy{}
	nav := service.NewNavigator(spy.navigate)
	t.Cleanup(nav.Cancel)
	return &routerFixture{
		creds:    creds,
		profiles: profiles,
		svc:      svc,
		nav:      nav,
		spy:      spy,
		handler: NewRouter(RouterServices{
			Auth:          svc,
			Credentials:   creds,
			Profiles:      profiles,
			Navigator:     nav,
			MismatchDelay: 10 * time.Millisecond,
			Logger:        testLogger(),
		}),
	}
}

func (f *routerFixture) seed(t *testing.T, id, email string, role domainauth.Role) domainauth.Identity {
	t.Helper()
	identity := domainauth.Identity{ID: id, Email: email}
	f.creds.Seed(identity, "correct-horse")
	require.NoError(t, f.profiles.Set(t.Context(), domainauth.Profile{
		ID:     id,
		Email:  email,
		Role:   role,
		Active: true,
	}, false))
	return identity
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}
