package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rowColumns = []string{"id", "patient_id", "doctor_id", "transcript", "summary", "hypotheses", "urgency", "status", "created_at", "updated_at"}

const (
	consultationID = "6f1c2b8e-4d3a-4f7e-9b2a-1c5d8e7f0a11"
	absentID       = "0b9e4c7d-2a1f-4e6b-8c3d-5f7a9b1e2d44"
)

func strPtr(s string) *string { return &s }

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresStoreCreate(t *testing.T) {
	db := newMockPool(t)
	service := newMockPool(t)
	store := NewPostgresStore(db, service)
	now := time.Now().UTC()

	db.ExpectQuery("INSERT INTO consultations").
		WithArgs("patient-1", "Paciente: dor", "waiting").
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(consultationID, "patient-1", (*string)(nil), "Paciente: dor", []byte(nil), []byte(nil), (*string)(nil), "waiting", now, now))

	c, grant, err := store.Create(context.Background(), "patient-1", "Paciente: dor")
	require.NoError(t, err)
	assert.Equal(t, consultationID, c.ID)
	assert.Equal(t, consultationID, grant.ConsultationID())
	assert.Equal(t, StatusWaiting, c.Status)
	assert.False(t, c.HasAnalysis())
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresStoreCreateFailure(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	db.ExpectQuery("INSERT INTO consultations").WillReturnError(errors.New("connection reset"))

	_, grant, err := store.Create(context.Background(), "patient-1", "x")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "create", perr.Op)
	assert.False(t, grant.Valid())
}

func TestPostgresStoreReconcileUsesServiceConnection(t *testing.T) {
	db := newMockPool(t)
	service := newMockPool(t)
	store := NewPostgresStore(db, service)
	analysis := sampleAnalysis()
	summaryJSON, err := json.Marshal(analysis.Summary)
	require.NoError(t, err)
	hypothesesJSON, err := json.Marshal(analysis.Hypotheses)
	require.NoError(t, err)

	service.ExpectExec("UPDATE consultations").
		WithArgs(consultationID, summaryJSON, hypothesesJSON, "less_urgent").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.ReconcileAnalysis(context.Background(), newReconcileGrant(consultationID), analysis))
	assert.NoError(t, service.ExpectationsWereMet())
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresStoreReconcileMissingRow(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	db.ExpectExec("UPDATE consultations").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.ReconcileAnalysis(context.Background(), newReconcileGrant("gone"), sampleAnalysis())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreReconcileRejectsZeroGrant(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	err := store.ReconcileAnalysis(context.Background(), ReconcileGrant{}, sampleAnalysis())
	assert.ErrorIs(t, err, ErrInvalidGrant)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresStoreGetByIDScopesPatients(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	now := time.Now().UTC()
	summary, _ := json.Marshal(sampleAnalysis().Summary)
	hypotheses, _ := json.Marshal(sampleAnalysis().Hypotheses)

	db.ExpectQuery("SELECT .* FROM consultations WHERE id = \\$1 AND patient_id = \\$2").
		WithArgs(consultationID, "patient-1").
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(consultationID, "patient-1", strPtr("doctor-1"), "x", summary, hypotheses, strPtr("urgent"), "in_review", now, now))

	c, err := store.GetByID(context.Background(), consultationID, Requester{Role: RolePatient, PatientID: "patient-1"})
	require.NoError(t, err)
	require.True(t, c.HasAnalysis())
	assert.Equal(t, UrgencyUrgent, *c.Urgency)
	assert.Equal(t, "doctor-1", *c.DoctorID)
	assert.Equal(t, "Dor de cabeça", c.Summary.QueixaPrincipal)
	require.Len(t, c.Hypotheses, 1)
	assert.Equal(t, ProbabilityHigh, c.Hypotheses[0].Probability)
}

func TestPostgresStoreGetByIDNotVisible(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	db.ExpectQuery("SELECT .* FROM consultations").
		WithArgs(consultationID, "patient-2").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetByID(context.Background(), consultationID, Requester{Role: RolePatient, PatientID: "patient-2"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByID(context.Background(), consultationID, Requester{Role: "guest"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreListQueue(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	now := time.Now().UTC()
	db.ExpectQuery("SELECT .* FROM consultations").
		WithArgs([]string{"waiting", "in_review"}).
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(consultationID, "p-1", (*string)(nil), "a", []byte(nil), []byte(nil), (*string)(nil), "waiting", now, now).
			AddRow("c-2", "p-2", strPtr("d-1"), "b", []byte(nil), []byte(nil), (*string)(nil), "in_review", now, now))

	got, err := store.ListQueue(context.Background(), QueueStatuses)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-2", got[1].ID)
	assert.Nil(t, got[0].Urgency)
}

func TestPostgresStoreUpdateStatusClaimsDoctor(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	now := time.Now().UTC()

	db.ExpectQuery("SELECT status FROM consultations").
		WithArgs(consultationID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("waiting"))
	db.ExpectQuery("UPDATE consultations").
		WithArgs(consultationID, "waiting", "in_review", strPtr("doctor-1")).
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(consultationID, "p-1", strPtr("doctor-1"), "x", []byte(nil), []byte(nil), (*string)(nil), "in_review", now, now))

	c, err := store.UpdateStatus(context.Background(), consultationID, "doctor-1", StatusInReview)
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, c.Status)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresStoreUpdateStatusDoesNotReclaim(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	now := time.Now().UTC()

	db.ExpectQuery("SELECT status FROM consultations").
		WithArgs(consultationID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("in_review"))
	db.ExpectQuery("UPDATE consultations").
		WithArgs(consultationID, "in_review", "completed", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(rowColumns).
			AddRow(consultationID, "p-1", strPtr("doctor-1"), "x", []byte(nil), []byte(nil), (*string)(nil), "completed", now, now))

	_, err := store.UpdateStatus(context.Background(), consultationID, "doctor-2", StatusCompleted)
	require.NoError(t, err)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresStoreUpdateStatusInvalidTransition(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	db.ExpectQuery("SELECT status FROM consultations").
		WithArgs(consultationID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("completed"))

	_, err := store.UpdateStatus(context.Background(), consultationID, "doctor-1", StatusInReview)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, db.ExpectationsWereMet(), "no write may be issued")
}

func TestPostgresStoreUpdateStatusConcurrentChange(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	db.ExpectQuery("SELECT status FROM consultations").
		WithArgs(consultationID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("waiting"))
	db.ExpectQuery("UPDATE consultations").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.UpdateStatus(context.Background(), consultationID, "doctor-1", StatusInReview)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusWaiting, terr.From)
}

func TestPostgresStoreUpdateStatusNotFound(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)
	db.ExpectQuery("SELECT status FROM consultations").
		WithArgs(absentID).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.UpdateStatus(context.Background(), absentID, "doctor-1", StatusInReview)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreMalformedIDIsNotFound(t *testing.T) {
	db := newMockPool(t)
	store := NewPostgresStore(db, nil)

	for _, id := range []string{"abc", "", "6f1c2b8e-4d3a"} {
		_, err := store.GetByID(context.Background(), id, Requester{Role: RoleDoctor, DoctorID: "doctor-1"})
		assert.ErrorIs(t, err, ErrNotFound, id)

		_, err = store.UpdateStatus(context.Background(), id, "doctor-1", StatusInReview)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
	require.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresProfiles(t *testing.T) {
	db := newMockPool(t)
	profiles := NewPostgresProfiles(db)

	db.ExpectQuery("SELECT id::text FROM patients").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("patient-1"))
	id, err := profiles.PatientIDForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "patient-1", id)

	db.ExpectQuery("SELECT id::text FROM doctors").
		WithArgs("user-2").
		WillReturnError(pgx.ErrNoRows)
	_, err = profiles.DoctorIDForUser(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
