package session

import (
	"context"

	"kbhub/internal/client/api"
)

// Session owns the current authenticated identity and the credential
// lifecycle. All "current user" reads go through it, never through the
// raw stored credential.
type Session struct {
	client  *api.Client
	store   CredentialStore
	user    *api.User
	loading bool
}

func New(client *api.Client, store CredentialStore) *Session {
	return &Session{client: client, store: store}
}

// CurrentUser returns the resolved identity, or nil when signed out.
func (s *Session) CurrentUser() *api.User {
	return s.user
}

func (s *Session) Loading() bool {
	return s.loading
}

// Resolve recovers identity from a previously stored credential. Any
// failure, a missing credential included, leaves the session signed out
// with the credential cleared. It never returns an error.
func (s *Session) Resolve(ctx context.Context) *api.User {
	s.loading = true
	defer func() { s.loading = false }()

	token, err := s.store.Load()
	if err != nil || token == "" {
		s.reset()
		return nil
	}

	s.client.SetToken(token)
	user, err := s.client.Me(ctx)
	if err != nil {
		s.reset()
		return nil
	}

	s.user = user
	return user
}

// Login exchanges credentials for a new token and resolves identity. A
// rejected attempt keeps any previously stored credential intact.
func (s *Session) Login(ctx context.Context, username, password string) error {
	result, err := s.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := s.store.Save(result.AccessToken); err != nil {
		return err
	}
	if s.Resolve(ctx) == nil {
		return &api.AuthError{Message: "login succeeded but identity resolution failed"}
	}
	return nil
}

// Logout clears the stored credential and identity. It takes local
// effect without a network call.
func (s *Session) Logout() error {
	err := s.store.Clear()
	s.user = nil
	s.client.ClearToken()
	return err
}

func (s *Session) reset() {
	s.user = nil
	s.client.ClearToken()
	_ = s.store.Clear()
}
