package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/repository"
)

const (
	defaultVerificationPrefix = "gate:verification"

	fieldPhase     = "phase"
	fieldOTPDigest = "otp_digest"
	fieldIssuedAt  = "issued_at"
	fieldExpiresAt = "expires_at"
)

// VerificationRepository persists per-caller verification state in Redis.
// Each session key maps to one hash with a TTL matching the state's expiry,
// so an expired record simply disappears and reads back as not found.
type VerificationRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewVerificationRepository constructs a repository with the provided Redis
// client and key prefix.
func NewVerificationRepository(client *red.Client, keyPrefix string) *VerificationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultVerificationPrefix
	}

	return &VerificationRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Get retrieves the verification state for the session key. A missing hash,
// or one whose stored expiry has already passed, returns repository.ErrNotFound.
func (r *VerificationRepository) Get(ctx context.Context, sessionKey string) (*domain.VerificationState, error) {
	key, err := r.key(sessionKey)
	if err != nil {
		return nil, err
	}

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall verification: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	// Redis TTL is the primary eviction mechanism, but the stored expiry is
	// authoritative: never hand back a record that is already stale.
	if !r.now().UTC().Before(expiresAt) {
		return nil, repository.ErrNotFound
	}

	state := &domain.VerificationState{
		Phase:     domain.Phase(values[fieldPhase]),
		OTPDigest: values[fieldOTPDigest],
		ExpiresAt: expiresAt,
	}

	if raw := values[fieldIssuedAt]; raw != "" {
		issuedAt, err := parseUnix(raw)
		if err != nil {
			return nil, fmt.Errorf("parse issued_at: %w", err)
		}
		state.IssuedAt = issuedAt
	}

	return state, nil
}

// Put overwrites the verification state for the session key and applies the TTL.
func (r *VerificationRepository) Put(ctx context.Context, sessionKey string, state domain.VerificationState, ttl time.Duration) error {
	key, err := r.key(sessionKey)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	fields := map[string]any{
		fieldPhase:     string(state.Phase),
		fieldOTPDigest: state.OTPDigest,
		fieldExpiresAt: strconv.FormatInt(state.ExpiresAt.Unix(), 10),
	}
	if !state.IssuedAt.IsZero() {
		fields[fieldIssuedAt] = strconv.FormatInt(state.IssuedAt.Unix(), 10)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store verification: %w", err)
	}

	return nil
}

// Delete removes the verification state for the session key. Deleting a
// missing record is not an error; expiry already behaves like deletion.
func (r *VerificationRepository) Delete(ctx context.Context, sessionKey string) error {
	key, err := r.key(sessionKey)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete verification: %w", err)
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (r *VerificationRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *VerificationRepository) key(sessionKey string) (string, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return "", errors.New("session key is required")
	}
	return fmt.Sprintf("%s:%s", r.prefix, sessionKey), nil
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.VerificationStore = (*VerificationRepository)(nil)
