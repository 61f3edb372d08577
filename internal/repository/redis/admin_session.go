package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/toolhub/admin-gate/internal/core/port"
)

const defaultAdminSessionPrefix = "gate:admin_session"

// AdminSessionRepository tracks issued admin session token hashes in Redis so
// sessions can be revoked before their natural expiry. The value carries no
// payload; key presence is the whole signal.
type AdminSessionRepository struct {
	client *red.Client
	prefix string
}

// NewAdminSessionRepository constructs a repository with the provided Redis
// client and key prefix.
func NewAdminSessionRepository(client *red.Client, keyPrefix string) *AdminSessionRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultAdminSessionPrefix
	}

	return &AdminSessionRepository{client: client, prefix: prefix}
}

// Save records the token hash with the session's TTL.
func (r *AdminSessionRepository) Save(ctx context.Context, tokenHash string, ttl time.Duration) error {
	key, err := r.key(tokenHash)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis store admin session: %w", err)
	}

	return nil
}

// Exists reports whether the token hash is still registered.
func (r *AdminSessionRepository) Exists(ctx context.Context, tokenHash string) (bool, error) {
	key, err := r.key(tokenHash)
	if err != nil {
		return false, err
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists admin session: %w", err)
	}

	return count > 0, nil
}

// Delete revokes the session by removing the token hash.
func (r *AdminSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	key, err := r.key(tokenHash)
	if err != nil {
		return err
	}

	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis delete admin session: %w", err)
	}
	if deleted == 0 {
		return nil
	}

	return nil
}

func (r *AdminSessionRepository) key(tokenHash string) (string, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return "", errors.New("token hash is required")
	}
	return fmt.Sprintf("%s:%s", r.prefix, tokenHash), nil
}

var _ port.AdminSessionStore = (*AdminSessionRepository)(nil)
