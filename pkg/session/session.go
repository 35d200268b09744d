// Package session keeps hub access tokens between CLI runs.
//
// One [Session] is saved per hub endpoint, so a token for a self-hosted hub
// never leaks to the public one. Sessions expire after a TTL and an expired
// session reads as absent.
//
//	ring, err := session.Open("") // ~/.config/shelfmark/sessions/
//	if err != nil {
//	    return err
//	}
//	err = ring.Save(session.New(endpoint, token, user, session.DefaultTTL))
//
// The saved token feeds hub logins through [Keyring.TokenSource].
package session

import (
	"time"

	"github.com/matzehuels/shelfmark/pkg/integrations/hfhub"
)

// DefaultTTL is how long a saved token is trusted. Hub tokens are
// long-lived, so the CLI keeps them for 30 days.
const DefaultTTL = 30 * 24 * time.Hour

// Session is a verified token for one hub endpoint.
type Session struct {
	Endpoint  string      `json:"endpoint"`
	Token     string      `json:"token"`
	User      *hfhub.User `json:"user,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// New returns a session valid for ttl from now.
func New(endpoint, token string, user *hfhub.User, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		Endpoint:  endpoint,
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserName returns the hub user name, or "" when unknown.
func (s *Session) UserName() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Name
}
