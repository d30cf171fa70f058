package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	tests := []struct {
		name    string
		event   AuditEvent
		execErr error
		wantErr bool
	}{
		{
			name: "triage submitted",
			event: AuditEvent{
				EventType:      EventTriageSubmitted,
				ConsultationID: uuid.NewString(),
				ActorID:        uuid.NewString(),
			},
		},
		{
			name: "processed with details",
			event: AuditEvent{
				EventType:      EventTriageProcessed,
				ConsultationID: uuid.NewString(),
				Details:        json.RawMessage(`{"urgency":"urgent"}`),
			},
		},
		{
			name:    "database failure",
			event:   AuditEvent{EventType: EventConsentWithdrawn, ActorID: "user-1"},
			execErr: errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := mock.ExpectExec("INSERT INTO triage_audit_events")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			err := service.LogEvent(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_TriageEventsCarryNoText(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	mock.ExpectExec("INSERT INTO triage_audit_events").
		WithArgs(sqlmock.AnyArg(), "triage.processed", "c-1", nil, []byte(`{"urgency":"emergency"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO triage_audit_events").
		WithArgs(sqlmock.AnyArg(), "triage.saved_without_analysis", "c-2", nil, []byte(`{"failure_reason":"timeout"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO triage_audit_events").
		WithArgs(sqlmock.AnyArg(), "triage.submitted", "c-3", "patient-1", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx := context.Background()
	require.NoError(t, service.LogTriageProcessed(ctx, "c-1", "emergency"))
	require.NoError(t, service.LogTriageDegraded(ctx, "c-2", "timeout"))
	require.NoError(t, service.LogTriageSubmitted(ctx, "c-3", "patient-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogStatusChanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	mock.ExpectExec("INSERT INTO triage_audit_events").
		WithArgs(sqlmock.AnyArg(), "consultation.status_changed", "c-1", "doctor-1", []byte(`{"status":"in_review"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = service.LogStatusChanged(context.Background(), "c-1", "doctor-1", "in_review")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "consultation_id", "actor_id", "details", "created_at",
	}).AddRow(
		uuid.NewString(), "triage.processed", "c-1", nil, []byte(`{"urgency":"urgent"}`), now,
	)

	mock.ExpectQuery("SELECT (.+) FROM triage_audit_events").
		WithArgs("c-1", `{"triage.processed","triage.saved_without_analysis"}`, sqlmock.AnyArg()).
		WillReturnRows(rows)

	filter := AuditFilter{
		ConsultationID: "c-1",
		EventTypes:     []AuditEventType{EventTriageProcessed, EventTriageDegraded},
		StartTime:      now.Add(-24 * time.Hour),
		Limit:          100,
	}

	events, err := service.QueryEvents(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTriageProcessed, events[0].EventType)
	assert.Equal(t, "c-1", events[0].ConsultationID)
	assert.Empty(t, events[0].ActorID)
	assert.JSONEq(t, `{"urgency":"urgent"}`, string(events[0].Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditEventType_String(t *testing.T) {
	tests := []struct {
		eventType AuditEventType
		expected  string
	}{
		{EventTriageSubmitted, "triage.submitted"},
		{EventTriageProcessed, "triage.processed"},
		{EventTriageDegraded, "triage.saved_without_analysis"},
		{EventStatusChanged, "consultation.status_changed"},
		{EventConsentRecorded, "consent.recorded"},
		{EventConsentWithdrawn, "consent.withdrawn"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.eventType))
		})
	}
}
