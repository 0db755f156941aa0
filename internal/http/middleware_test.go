package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	mockauth "github.com/edumanage/edumanage/internal/mocks/auth"
)

func protectedEndpoint(t *testing.T, creds *mockauth.MockCredentialStore, profiles *mockauth.MemoryProfileStore, roles ...domainauth.Role) http.Handler {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, ok := ProfileFromContext(r.Context())
		require.True(t, ok, "profile must be on the context past the role check")
		WriteJSON(w, http.StatusOK, map[string]string{"role": string(profile.Role)})
	})
	return Chain(inner, RequireAuth(creds), RequireRoles(profiles, roles...))
}

func seedAdmin(t *testing.T, creds *mockauth.MockCredentialStore, profiles *mockauth.MemoryProfileStore) string {
	t.Helper()
	identity := domainauth.Identity{ID: "id-admin", Email: "principal@school.org"}
	creds.Seed(identity, "correct-horse")
	require.NoError(t, profiles.Set(t.Context(), domainauth.Profile{
		ID:     identity.ID,
		Email:  identity.Email,
		Role:   domainauth.RoleSuperAdmin,
		Active: true,
	}, false))
	token, err := creds.IssueToken(t.Context(), identity.ID, false)
	require.NoError(t, err)
	return token
}

func TestRequireAuth(t *testing.T) {
	creds := mockauth.NewMockCredentialStore()
	profiles := mockauth.NewMemoryProfileStore()
	handler := protectedEndpoint(t, creds, profiles)
	token := seedAdmin(t, creds, profiles)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_token")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "super_admin")
	})
}

func TestRequireRoles(t *testing.T) {
	creds := mockauth.NewMockCredentialStore()
	profiles := mockauth.NewMemoryProfileStore()

	authed := func(t *testing.T, handler http.Handler, token string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing profile is 404", func(t *testing.T) {
		identity := domainauth.Identity{ID: "id-ghost", Email: "ghost@school.org"}
		creds.Seed(identity, "pw")
		token, err := creds.IssueToken(t.Context(), identity.ID, false)
		require.NoError(t, err)

		rec := authed(t, protectedEndpoint(t, creds, profiles), token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "profile_not_found")
	})

	t.Run("inactive profile is 403", func(t *testing.T) {
		identity := domainauth.Identity{ID: "id-off", Email: "left@school.org"}
		creds.Seed(identity, "pw")
		require.NoError(t, profiles.Set(t.Context(), domainauth.Profile{
			ID: identity.ID, Email: identity.Email, Role: domainauth.RoleTeacher, Active: false,
		}, false))
		token, err := creds.IssueToken(t.Context(), identity.ID, false)
		require.NoError(t, err)

		rec := authed(t, protectedEndpoint(t, creds, profiles), token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "account_inactive")
	})

	t.Run("role outside the set is 403", func(t *testing.T) {
		identity := domainauth.Identity{ID: "id-t", Email: "t@school.org"}
		creds.Seed(identity, "pw")
		require.NoError(t, profiles.Set(t.Context(), domainauth.Profile{
			ID: identity.ID, Email: identity.Email, Role: domainauth.RoleTeacher, Active: true,
		}, false))
		token, err := creds.IssueToken(t.Context(), identity.ID, false)
		require.NoError(t, err)

		rec := authed(t, protectedEndpoint(t, creds, profiles, domainauth.RoleSuperAdmin), token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "insufficient_permissions")

		// An empty role set admits any authenticated, active profile.
		rec = authed(t, protectedEndpoint(t, creds, profiles), token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRecoverMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(panicky, Recover(testLogger()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
