// Package auth handles authentication and session management for the
// call-center backend.
//
// This package provides:
//   - Login against the backend and persistence of the session
//   - Session restore on startup, with teardown of partial state
//   - Retry logic with backoff for unattended logins
//
// A session is two slots in the store: the bearer token and a small JSON
// user record. It is valid only when both are present and the record
// parses. Tokens are opaque; nothing here inspects or refreshes them.
package auth

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"callcenter/internal/api"
	"callcenter/internal/errors"
	"callcenter/internal/storage"
)

// User is the operator record kept alongside the token.
type User struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Manager owns the session slots of one store.
type Manager struct {
	client *api.Client
	store  storage.Store
}

// NewManager returns a Manager for client. The store must be the one the
// client reads its token from.
func NewManager(client *api.Client, store storage.Store) *Manager {
	return &Manager{client: client, store: store}
}

// Login authenticates with the backend and stores the session.
//
// Login flow:
//  1. POST credentials to the login endpoint
//  2. Falsy status → LoginFailedError carrying the backend's message
//  3. Store the token (when one was sent) and the user record
//
// Transport and HTTP errors are returned unchanged.
func (m *Manager) Login(ctx context.Context, username, password string) (*User, error) {
	resp, err := m.client.Login(ctx, api.Credentials{User: username, Password: password})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = "Login failed"
		}
		return nil, errors.NewLoginFailedError(msg, nil)
	}

	if resp.Token != "" {
		if err := m.client.SetAuthToken(resp.Token); err != nil {
			return nil, err
		}
	}

	user := &User{Username: resp.Username, Message: resp.Message}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(storage.KeyUserData, string(data)); err != nil {
		return nil, err
	}
	return user, nil
}

// Restore returns the stored session's user.
//
// With neither slot set it returns a SessionExpiredError and changes
// nothing. With only one slot set, or an unparseable user record, it tears
// the session down before returning the error.
func (m *Manager) Restore() (*User, error) {
	token, err := m.client.AuthToken()
	if err != nil {
		return nil, err
	}
	data, hasData, err := m.store.Get(storage.KeyUserData)
	if err != nil {
		return nil, err
	}

	if token == "" && !hasData {
		return nil, errors.NewSessionExpiredError("not logged in")
	}
	if token == "" || !hasData {
		m.teardown("incomplete session")
		return nil, errors.NewSessionExpiredError("incomplete session")
	}

	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		m.teardown("unreadable user data")
		return nil, errors.NewSessionExpiredError("unreadable user data")
	}
	return &user, nil
}

func (m *Manager) teardown(reason string) {
	log.Printf("⚠️  Clearing stored session: %s\n", reason)
	if err := m.Logout(); err != nil {
		log.Printf("⚠️  Failed to clear session: %v\n", err)
	}
}

// Logout removes the token and the user record.
func (m *Manager) Logout() error {
	if err := m.client.RemoveAuthToken(); err != nil {
		return err
	}
	return m.store.Remove(storage.KeyUserData)
}

// LoginWithRetry calls Login up to maxRetries times, doubling the delay
// after each failure. A rejection by the backend (LoginFailedError) is not
// retried; only transport and HTTP errors are.
func (m *Manager) LoginWithRetry(ctx context.Context, username, password string, maxRetries int, delay time.Duration) (*User, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("🔐 Login attempt %d/%d...\n", attempt, maxRetries)

		user, err := m.Login(ctx, username, password)
		if err == nil {
			log.Println("✓ Login successful")
			return user, nil
		}
		if errors.IsLoginFailed(err) {
			return nil, err
		}

		lastErr = err
		log.Printf("  ✗ Login attempt %d failed: %v\n", attempt, err)

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil, errors.NewLoginFailedError("login retries exhausted", lastErr)
}
