package consultation

import (
	"context"
)

// Store persists consultations.
type Store interface {
	// Create inserts a waiting consultation with no analysis and returns the
	// grant that allows exactly that row to be reconciled.
	Create(ctx context.Context, patientID, transcript string) (*Consultation, ReconcileGrant, error)
	// ReconcileAnalysis writes summary, hypotheses and urgency on the granted
	// row. Status, doctor and transcript are never touched.
	ReconcileAnalysis(ctx context.Context, grant ReconcileGrant, analysis Analysis) error
	GetByID(ctx context.Context, id string, requester Requester) (*Consultation, error)
	ListByPatient(ctx context.Context, patientID string) ([]Consultation, error)
	ListQueue(ctx context.Context, statuses []Status) ([]Consultation, error)
	UpdateStatus(ctx context.Context, id, doctorID string, status Status) (*Consultation, error)
}

// ReconcileGrant authorizes the elevated analysis write for a single
// consultation. Only Create can mint a usable grant.
type ReconcileGrant struct {
	consultationID string
}

func newReconcileGrant(id string) ReconcileGrant {
	return ReconcileGrant{consultationID: id}
}

// ConsultationID is the row the grant applies to.
func (g ReconcileGrant) ConsultationID() string {
	return g.consultationID
}

// Valid reports whether the grant was issued by a store.
func (g ReconcileGrant) Valid() bool {
	return g.consultationID != ""
}
