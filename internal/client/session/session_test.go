package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbhub/internal/client/api"
)

// fakeAuthServer accepts alice/secret and issues the given token. /auth/me
// succeeds only for tokens present in validTokens.
func fakeAuthServer(t *testing.T, issuedToken string, validTokens map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/auth/login":
			var body struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.Username != "alice" || body.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]interface{}{"code": 40101, "message": "invalid username or password"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 0, "message": "ok",
				"data": map[string]string{"access_token": issuedToken, "token_type": "bearer"},
			})
		case r.URL.Path == "/auth/me":
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !validTokens[token] {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]interface{}{"code": 40100, "message": "invalid token"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 0, "message": "ok",
				"data": map[string]interface{}{"id": 1, "username": "alice", "email": "alice@example.com"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestResolveWithoutCredentialStaysSignedOut(t *testing.T) {
	server := fakeAuthServer(t, "tok", map[string]bool{"tok": true})
	defer server.Close()

	sess := New(api.New(server.URL), NewMemoryStore())
	user := sess.Resolve(context.Background())

	assert.Nil(t, user)
	assert.Nil(t, sess.CurrentUser())
	assert.False(t, sess.Loading())
}

func TestResolveRecoversIdentityFromStoredCredential(t *testing.T) {
	server := fakeAuthServer(t, "tok", map[string]bool{"tok": true})
	defer server.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save("tok"))

	sess := New(api.New(server.URL), store)
	user := sess.Resolve(context.Background())

	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, user, sess.CurrentUser())
}

func TestResolveClearsExpiredCredential(t *testing.T) {
	server := fakeAuthServer(t, "tok", map[string]bool{"tok": true})
	defer server.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save("expired"))

	sess := New(api.New(server.URL), store)
	user := sess.Resolve(context.Background())

	assert.Nil(t, user)
	stored, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, stored, "invalid credential must be cleared")
}

func TestLoginPersistsCredentialAndResolves(t *testing.T) {
	server := fakeAuthServer(t, "fresh", map[string]bool{"fresh": true})
	defer server.Close()

	store := NewMemoryStore()
	sess := New(api.New(server.URL), store)

	require.NoError(t, sess.Login(context.Background(), "alice", "secret"))
	require.NotNil(t, sess.CurrentUser())
	assert.Equal(t, "alice", sess.CurrentUser().Username)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored)
}

func TestFailedLoginKeepsExistingCredential(t *testing.T) {
	server := fakeAuthServer(t, "fresh", map[string]bool{"old": true, "fresh": true})
	defer server.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save("old"))

	sess := New(api.New(server.URL), store)
	err := sess.Login(context.Background(), "alice", "wrong")

	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)

	stored, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "old", stored, "a rejected login must not clear the previous credential")
}

func TestLogoutTakesLocalEffectWithoutNetwork(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save("tok"))

	sess := New(api.New(server.URL), store)
	require.NoError(t, sess.Logout())

	assert.Nil(t, sess.CurrentUser())
	assert.Zero(t, hits, "logout must not contact the network")

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/nested/credential"
	store := NewFileStore(path)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, store.Save("tok"))
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", loaded)

	require.NoError(t, store.Clear())
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, store.Clear(), "clearing an absent credential is not an error")
}
