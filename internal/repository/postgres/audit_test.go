package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"

	"github.com/toolhub/admin-gate/internal/core/domain"
)

func TestAuditRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool returned error: %v", err)
	}
	defer mock.Close()

	fixed := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	repo := NewAuditRepository(mock)
	repo.WithClock(func() time.Time { return fixed })

	mock.ExpectExec("INSERT INTO admin_audit_events").
		WithArgs(pgxmock.AnyArg(), "sess-1", domain.StepCredentials, domain.OutcomeAccepted, "adm***@example.com", "192.168.*.*", "req-1", fixed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	event := domain.AuditEvent{
		SessionKey: "sess-1",
		Step:       domain.StepCredentials,
		Outcome:    domain.OutcomeAccepted,
		Identity:   "adm***@example.com",
		ClientIP:   "192.168.*.*",
		RequestID:  "req-1",
	}

	if err := repo.Record(context.Background(), event); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditRepository_Record_RequiresStepAndOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool returned error: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	if err := repo.Record(context.Background(), domain.AuditEvent{Step: domain.StepResend}); err == nil {
		t.Fatalf("expected error for missing outcome")
	}
	if err := repo.Record(context.Background(), domain.AuditEvent{Outcome: domain.OutcomeRejected}); err == nil {
		t.Fatalf("expected error for missing step")
	}
}

func TestAuditRepository_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool returned error: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)
	created := time.Date(2025, 11, 3, 9, 31, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "session_key", "step", "outcome", "identity", "client_ip", "request_id", "created_at"}).
		AddRow("evt-1", "sess-1", domain.StepOneTimeCode, domain.OutcomeAccepted, "adm***@example.com", "10.0.*.*", "req-9", created)

	mock.ExpectQuery("SELECT id, session_key, step, outcome, identity, client_ip, request_id, created_at FROM admin_audit_events").
		WillReturnRows(rows)

	events, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID != "evt-1" || events[0].Step != domain.StepOneTimeCode {
		t.Fatalf("unexpected event: %+v", events[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
