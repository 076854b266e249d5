package driven

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore defines the driven port for access-gate sessions. A token
// present in the store marks its holder as authenticated.
type SessionStore interface {
	// Create records token as authenticated until ttl elapses.
	Create(ctx context.Context, token string, ttl time.Duration) error

	// Touch extends a live session by ttl. Returns ErrSessionNotFound for
	// unknown or expired tokens.
	Touch(ctx context.Context, token string, ttl time.Duration) error

	// Delete removes the session. Deleting an unknown token is a no-op.
	Delete(ctx context.Context, token string) error
}
