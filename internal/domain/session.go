package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is a live login. Access and refresh tokens carry the session ID;
// logging out deletes the session and with it every token issued for it.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession starts a session for user that lasts for lifetime.
func NewSession(user uuid.UUID, lifetime time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New(),
		UserID:    user,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
