// Package auth implements the token boundary around the game server.
// Tokens are opaque handles stored in Redis with a TTL; no
// cryptographic scheme is involved here, verification is a lookup.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skysquad-server/internal/domain"
)

// Verifier resolves a presented token to a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Issuer creates a token bound to a user id.
type Issuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

// TokenService is the Redis-backed token store.
type TokenService struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewTokenService creates a token service on an existing Redis client.
func NewTokenService(client *redis.Client, ttl time.Duration, logger *slog.Logger) *TokenService {
	return &TokenService{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func tokenKey(token string) string {
	return fmt.Sprintf("token:%s", token)
}

// Issue mints a fresh opaque token for the user.
func (s *TokenService) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	s.logger.Debug("token issued", "user_id", userID)
	return token, nil
}

// Verify resolves the token to its user id. Unknown or expired tokens
// report ErrInvalidToken.
func (s *TokenService) Verify(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", domain.ErrInvalidToken
		}
		return "", fmt.Errorf("verifying token: %w", err)
	}
	return userID, nil
}
