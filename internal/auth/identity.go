package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"inventrack/internal/domain"
)

// ErrUnauthenticated is returned when a token does not map to a profile.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Identity is the authenticated caller of one request. It is resolved from
// the session token on every request and passed explicitly to every tool
// call; it is never taken from model output or request bodies.
type Identity struct {
	UserID string
	Email  string
	Role   domain.Role
}

// ProfileLookup finds the profile owning a hashed session token.
type ProfileLookup interface {
	ProfileByTokenHash(ctx context.Context, tokenHash string) (Identity, error)
}

// Resolver maps bearer tokens to identities.
type Resolver struct {
	profiles ProfileLookup
}

// NewResolver returns a Resolver backed by profiles. Panics if profiles is nil.
func NewResolver(profiles ProfileLookup) *Resolver {
	if profiles == nil {
		panic("auth: profile lookup must not be nil")
	}
	return &Resolver{profiles: profiles}
}

// Resolve returns the identity for a raw bearer token. The role is
// normalised so an unknown stored value never grants more than viewer.
func (r *Resolver) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	id, err := r.profiles.ProfileByTokenHash(ctx, HashToken(token))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	id.Role = domain.ParseRole(string(id.Role))
	return id, nil
}

// HashToken returns the hex SHA-256 of a session token. Only hashes are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// randRead is the entropy source for NewToken. Package-level so tests can
// inject a failing reader.
var randRead = rand.Read

// NewToken returns a fresh random session token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := randRead(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return "itk_" + hex.EncodeToString(buf), nil
}

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
