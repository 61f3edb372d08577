package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
)

const defaultAuditListLimit = 50

// Querier is the subset of pgxpool.Pool the audit repository needs. Narrowed
// so tests can substitute pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditRepository persists verification outcomes to the admin_audit_events table.
type AuditRepository struct {
	db      Querier
	builder sq.StatementBuilderType
	now     func() time.Time
}

// NewAuditRepository constructs an AuditRepository backed by the provided querier.
func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:     time.Now,
	}
}

// Record inserts one audit row. The caller treats failures as best-effort.
func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	if event.Step == "" || event.Outcome == "" {
		return errors.New("step and outcome are required")
	}

	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}

	query, args, err := r.builder.
		Insert("admin_audit_events").
		Columns("id", "session_key", "step", "outcome", "identity", "client_ip", "request_id", "created_at").
		Values(id, event.SessionKey, event.Step, event.Outcome, event.Identity, event.ClientIP, event.RequestID, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

// ListRecent returns the newest audit rows, most recent first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = defaultAuditListLimit
	}

	query, args, err := r.builder.
		Select("id", "session_key", "step", "outcome", "identity", "client_ip", "request_id", "created_at").
		From("admin_audit_events").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit select: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.SessionKey,
			&event.Step,
			&event.Outcome,
			&event.Identity,
			&event.ClientIP,
			&event.RequestID,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// WithClock overrides the internal clock, used in tests.
func (r *AuditRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

var _ port.AuditRepository = (*AuditRepository)(nil)
