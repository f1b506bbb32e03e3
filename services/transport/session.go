package transport

import (
	"sync"
	"time"

	"mitra/models"
	"mitra/utils"
)

// Session holds the bearer credential of the signed-in mitra. It is passed
// explicitly to the client instead of living in ambient storage.
type Session struct {
	mu            sync.RWMutex
	token         string
	user          *models.User
	onInvalidated func(reason string)
	now           func() time.Time
}

// NewSession creates a session seeded with token (which may be empty).
// onInvalidated is called, outside the lock, whenever the credential is dropped.
func NewSession(token string, onInvalidated func(reason string)) *Session {
	return &Session{token: token, onInvalidated: onInvalidated, now: time.Now}
}

func (s *Session) SetToken(token string, user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Expired reports whether the current token is a JWT whose exp has passed.
func (s *Session) Expired() bool {
	token := s.Token()
	return token != "" && utils.TokenExpired(token, s.now())
}

// Invalidate clears the credential and notifies the owner once per drop.
func (s *Session) Invalidate(reason string) {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.user = nil
	cb := s.onInvalidated
	s.mu.Unlock()

	if had && cb != nil {
		cb(reason)
	}
}
