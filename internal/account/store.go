// Package account owns the Copilot credential chain: the long-lived GitHub
// identity token and the short-lived session token derived from it.
package account

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"copilot-gateway/internal/core"
)

// Credentials is an immutable snapshot of the credential pair.
type Credentials struct {
	IdentityToken string
	SessionToken  string
	SessionExpiry time.Time
	RefreshIn     time.Duration
	UpdatedAt     time.Time
}

// HasSession reports whether the session token is usable at the given instant.
func (c Credentials) HasSession(now time.Time) bool {
	if c.SessionToken == "" {
		return false
	}
	return c.SessionExpiry.IsZero() || now.Before(c.SessionExpiry)
}

// Store holds the current credential pair. Readers load an immutable snapshot
// without locking; writers are serialized and publish a new snapshot with a
// single atomic store.
type Store struct {
	creds   atomic.Pointer[Credentials]
	writeMu sync.Mutex
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.creds.Store(&Credentials{})
	return s
}

// Snapshot returns the current credentials.
func (s *Store) Snapshot() Credentials {
	return *s.creds.Load()
}

func (s *Store) update(fn func(c *Credentials)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := *s.creds.Load()
	fn(&next)
	next.UpdatedAt = s.now()
	s.creds.Store(&next)
}

// SetIdentityToken replaces the identity token.
func (s *Store) SetIdentityToken(token string) {
	s.update(func(c *Credentials) {
		c.IdentityToken = token
	})
}

// SetSession replaces the session token and its validity window.
func (s *Store) SetSession(token string, expiry time.Time, refreshIn time.Duration) {
	s.update(func(c *Credentials) {
		c.SessionToken = token
		c.SessionExpiry = expiry
		c.RefreshIn = refreshIn
	})
}

// IdentityToken returns the current identity token or "".
func (s *Store) IdentityToken() string {
	return s.creds.Load().IdentityToken
}

// SessionHeader returns the Authorization value for Copilot calls. It never
// blocks on a refresh in flight; the last published token is returned.
func (s *Store) SessionHeader() (string, error) {
	c := s.creds.Load()
	if c.SessionToken == "" {
		return "", core.ErrNoSessionToken
	}
	if !c.HasSession(s.now()) {
		return "", fmt.Errorf("%w: expired at %s", core.ErrNoSessionToken, c.SessionExpiry.Format(time.RFC3339))
	}
	return core.AuthBearerPrefix + c.SessionToken, nil
}
