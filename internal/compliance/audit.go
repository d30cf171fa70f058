// Package compliance provides the LGPD consent record and the clinical audit trail.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventTriageSubmitted is logged once the transcript is durably stored.
	EventTriageSubmitted AuditEventType = "triage.submitted"
	// EventTriageProcessed is logged when the analysis was attached.
	EventTriageProcessed AuditEventType = "triage.processed"
	// EventTriageDegraded is logged when the consultation was saved without analysis.
	EventTriageDegraded AuditEventType = "triage.saved_without_analysis"
	// EventStatusChanged is logged when a doctor moves a consultation.
	EventStatusChanged AuditEventType = "consultation.status_changed"
	// EventConsentRecorded is logged when a patient accepts the consent term.
	EventConsentRecorded AuditEventType = "consent.recorded"
	// EventConsentWithdrawn is logged when a patient revokes consent.
	EventConsentWithdrawn AuditEventType = "consent.withdrawn"
)

// AuditEvent is an immutable audit record. It never carries transcript or
// summary text, only identifiers and classifications.
type AuditEvent struct {
	ID             string          `json:"id"`
	EventType      AuditEventType  `json:"event_type"`
	ConsultationID string          `json:"consultation_id,omitempty"`
	ActorID        string          `json:"actor_id,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For processed triage
	Urgency string `json:"urgency,omitempty"`

	// For degraded triage
	FailureReason string `json:"failure_reason,omitempty"`

	// For status changes
	Status string `json:"status,omitempty"`

	// For consent events
	ConsentVersion string `json:"consent_version,omitempty"`
}

// AuditService handles compliance audit logging.
type AuditService struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db, now: time.Now}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO triage_audit_events (
			id, event_type, consultation_id, actor_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		nullString(event.ConsultationID),
		nullString(event.ActorID),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

func (s *AuditService) logWithDetails(ctx context.Context, eventType AuditEventType, consultationID, actorID string, details AuditDetails) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("compliance: failed to encode audit details: %w", err)
	}
	return s.LogEvent(ctx, AuditEvent{
		EventType:      eventType,
		ConsultationID: consultationID,
		ActorID:        actorID,
		Details:        detailsJSON,
	})
}

// LogTriageSubmitted logs that a patient's transcript was stored.
func (s *AuditService) LogTriageSubmitted(ctx context.Context, consultationID, patientID string) error {
	return s.logWithDetails(ctx, EventTriageSubmitted, consultationID, patientID, AuditDetails{})
}

// LogTriageProcessed logs the urgency assigned to a consultation.
func (s *AuditService) LogTriageProcessed(ctx context.Context, consultationID, urgency string) error {
	return s.logWithDetails(ctx, EventTriageProcessed, consultationID, "", AuditDetails{Urgency: urgency})
}

// LogTriageDegraded logs a consultation stored without analysis.
func (s *AuditService) LogTriageDegraded(ctx context.Context, consultationID, reason string) error {
	return s.logWithDetails(ctx, EventTriageDegraded, consultationID, "", AuditDetails{FailureReason: reason})
}

// LogStatusChanged logs a doctor's review transition.
func (s *AuditService) LogStatusChanged(ctx context.Context, consultationID, doctorID, status string) error {
	return s.logWithDetails(ctx, EventStatusChanged, consultationID, doctorID, AuditDetails{Status: status})
}

// LogConsentRecorded logs acceptance of a consent term version.
func (s *AuditService) LogConsentRecorded(ctx context.Context, userID, version string) error {
	return s.logWithDetails(ctx, EventConsentRecorded, "", userID, AuditDetails{ConsentVersion: version})
}

// LogConsentWithdrawn logs revocation of consent.
func (s *AuditService) LogConsentWithdrawn(ctx context.Context, userID string) error {
	return s.logWithDetails(ctx, EventConsentWithdrawn, "", userID, AuditDetails{})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, consultation_id, actor_id, details, created_at
		FROM triage_audit_events
		WHERE 1 = 1
	`
	var args []any
	argIdx := 1

	if filter.ConsultationID != "" {
		query += fmt.Sprintf(" AND consultation_id = $%d", argIdx)
		args = append(args, filter.ConsultationID)
		argIdx++
	}
	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, filter.ActorID)
		argIdx++
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" AND event_type = ANY($%d)", argIdx)
		args = append(args, pq.Array(types))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var eventType string
		var consultationID, actorID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &eventType, &consultationID, &actorID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.EventType = AuditEventType(eventType)
		e.ConsultationID = consultationID.String
		e.ActorID = actorID.String
		e.Details = details
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	ConsultationID string
	ActorID        string
	EventTypes     []AuditEventType
	StartTime      time.Time
	EndTime        time.Time
	Limit          int
	Offset         int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
