package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// SessionCookieName is the cookie the driving adapters carry the session token in.
const SessionCookieName = "passpanel_session"

// ErrInvalidSecret is returned by Login when the presented secret does not
// match the configured access secret.
var ErrInvalidSecret = errors.New("invalid access secret")

// AccessGate guards the application behind a single shared secret. A
// successful login yields an opaque session token held in a SessionStore;
// every authenticated request slides the token's expiry forward.
type AccessGate struct {
	hash     []byte
	sessions driven.SessionStore
	ttl      time.Duration
	logger   *slog.Logger
}

// NewAccessGate creates an AccessGate. Exactly one of secret (plaintext,
// hashed here) or secretHash (a bcrypt hash) is used; secretHash wins when
// both are set.
func NewAccessGate(secret, secretHash string, sessions driven.SessionStore, ttl time.Duration) (*AccessGate, error) {
	var hash []byte
	switch {
	case secretHash != "":
		hash = []byte(secretHash)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("parse access secret hash: %w", err)
		}
	case secret != "":
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash access secret: %w", err)
		}
	default:
		return nil, errors.New("access gate requires a secret or a secret hash")
	}

	return &AccessGate{
		hash:     hash,
		sessions: sessions,
		ttl:      ttl,
		logger:   slog.Default(),
	}, nil
}

// TTL returns the idle lifetime of a session.
func (g *AccessGate) TTL() time.Duration {
	return g.ttl
}

// Login checks secret and, on a match, opens a new session and returns its token.
func (g *AccessGate) Login(ctx context.Context, secret string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(secret)); err != nil {
		return "", ErrInvalidSecret
	}

	token := uuid.NewString()
	if err := g.sessions.Create(ctx, token, g.ttl); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return token, nil
}

// Authenticated reports whether token names a live session, extending it on success.
// Store failures are logged and treated as unauthenticated.
func (g *AccessGate) Authenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	err := g.sessions.Touch(ctx, token, g.ttl)
	if err == nil {
		return true
	}
	if !errors.Is(err, driven.ErrSessionNotFound) {
		g.logger.Error("session lookup failed", "error", err)
	}
	return false
}

// Logout ends the session named by token. Unknown tokens are ignored.
func (g *AccessGate) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := g.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}
