package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used by the Postgres stores. Both *pgxpool.Pool
// and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const consultationColumns = `id::text, patient_id::text, doctor_id::text, transcript, summary, hypotheses, urgency, status, created_at, updated_at`

// PostgresStore persists consultations in Postgres. User-driven reads and
// writes go through db; the analysis reconciliation uses the service
// connection, which bypasses row-level policies.
type PostgresStore struct {
	db      Querier
	service Querier
}

// NewPostgresStore wires the store. service may be nil, in which case db is
// used for reconciliation as well.
func NewPostgresStore(db Querier, service Querier) *PostgresStore {
	if db == nil {
		panic("consultation: pgx pool required")
	}
	if service == nil {
		service = db
	}
	return &PostgresStore{db: db, service: service}
}

func (s *PostgresStore) Create(ctx context.Context, patientID, transcript string) (*Consultation, ReconcileGrant, error) {
	query := `
		INSERT INTO consultations (patient_id, transcript, status)
		VALUES ($1, $2, $3)
		RETURNING ` + consultationColumns
	c, err := scanConsultation(s.db.QueryRow(ctx, query, patientID, transcript, string(StatusWaiting)))
	if err != nil {
		return nil, ReconcileGrant{}, persistenceError("create", err)
	}
	return c, newReconcileGrant(c.ID), nil
}

func (s *PostgresStore) ReconcileAnalysis(ctx context.Context, grant ReconcileGrant, analysis Analysis) error {
	if !grant.Valid() {
		return ErrInvalidGrant
	}
	summary, err := json.Marshal(analysis.Summary)
	if err != nil {
		return persistenceError("reconcile", fmt.Errorf("encode summary: %w", err))
	}
	hypotheses := analysis.Hypotheses
	if hypotheses == nil {
		hypotheses = []Hypothesis{}
	}
	hypothesesJSON, err := json.Marshal(hypotheses)
	if err != nil {
		return persistenceError("reconcile", fmt.Errorf("encode hypotheses: %w", err))
	}
	query := `
		UPDATE consultations
		SET summary = $2, hypotheses = $3, urgency = $4, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.service.Exec(ctx, query, grant.ConsultationID(), summary, hypothesesJSON, string(analysis.Urgency))
	if err != nil {
		return persistenceError("reconcile", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string, requester Requester) (*Consultation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var row pgx.Row
	switch requester.Role {
	case RoleDoctor, RoleAdmin:
		row = s.db.QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id)
	case RolePatient:
		if requester.PatientID == "" {
			return nil, ErrNotFound
		}
		row = s.db.QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1 AND patient_id = $2`, id, requester.PatientID)
	default:
		return nil, ErrNotFound
	}
	c, err := scanConsultation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("get", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]Consultation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC
	`, patientID)
	if err != nil {
		return nil, persistenceError("list by patient", err)
	}
	return collectConsultations(rows, "list by patient")
}

func (s *PostgresStore) ListQueue(ctx context.Context, statuses []Status) ([]Consultation, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE status = ANY($1)
	`, names)
	if err != nil {
		return nil, persistenceError("list queue", err)
	}
	return collectConsultations(rows, "list queue")
}

// UpdateStatus applies a doctor transition. The write is conditional on the
// status read beforehand, so a concurrent change surfaces as a TransitionError.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id, doctorID string, status Status) (*Consultation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var current string
	if err := s.db.QueryRow(ctx, `SELECT status FROM consultations WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("update status", err)
	}
	from := Status(current)
	if err := checkTransition(from, status); err != nil {
		return nil, err
	}
	var claim *string
	if claimsDoctor(from) && doctorID != "" {
		claim = &doctorID
	}
	query := `
		UPDATE consultations
		SET status = $3, doctor_id = COALESCE(doctor_id, $4::uuid), updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + consultationColumns
	c, err := scanConsultation(s.db.QueryRow(ctx, query, id, string(from), string(status), claim))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &TransitionError{From: from, To: status}
		}
		return nil, persistenceError("update status", err)
	}
	return c, nil
}

// validID rejects ids the uuid column could never hold, so a malformed path
// parameter reads as a missing row instead of a driver error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func collectConsultations(rows pgx.Rows, op string) ([]Consultation, error) {
	defer rows.Close()
	out := make([]Consultation, 0)
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, persistenceError(op, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(op, err)
	}
	return out, nil
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var (
		c          Consultation
		doctorID   *string
		summary    []byte
		hypotheses []byte
		urgency    *string
		status     string
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&c.ID, &c.PatientID, &doctorID, &c.Transcript, &summary, &hypotheses, &urgency, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.DoctorID = doctorID
	c.Status = Status(status)
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	if len(summary) > 0 {
		var sum ClinicalSummary
		if err := json.Unmarshal(summary, &sum); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		c.Summary = &sum
	}
	if len(hypotheses) > 0 {
		if err := json.Unmarshal(hypotheses, &c.Hypotheses); err != nil {
			return nil, fmt.Errorf("decode hypotheses: %w", err)
		}
	}
	if urgency != nil {
		u := Urgency(*urgency)
		c.Urgency = &u
	}
	return &c, nil
}
