package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/studio/pkg/redis"
)

// ErrSessionRevoked is returned for a token whose session was signed out.
var ErrSessionRevoked = errors.New("session revoked")

// ContextClaims is the gin context key holding the caller's *Claims.
const ContextClaims = "auth_claims"

// ClaimsFrom returns the claims stored by the auth middleware.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// IsAdminEmail reports whether email belongs to the admin domain.
func IsAdminEmail(email, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
	if domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), "@"+domain)
}

// Sessions issues tokens and tracks revoked ones until they would have expired.
type Sessions struct {
	jwt *JWTService
	kv  redis.KV
}

// NewSessions creates a session manager.
func NewSessions(jwt *JWTService, kv redis.KV) *Sessions {
	return &Sessions{jwt: jwt, kv: kv}
}

func revokedKey(jti string) string { return "revoked:" + jti }

// Issue signs a new session for the user.
func (s *Sessions) Issue(userID uuid.UUID, email string) (string, *Claims, error) {
	return s.jwt.Generate(userID, email)
}

// Validate checks the token signature and expiry, then the revocation list.
func (s *Sessions) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	_, revoked, err := s.kv.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// UserID resolves a token to its user. Used by the realtime endpoint.
func (s *Sessions) UserID(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

// Revoke marks the session as signed out for the rest of its lifetime.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.kv.Set(ctx, revokedKey(claims.ID), "1", ttl)
}
