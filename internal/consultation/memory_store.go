package consultation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps consultations in process memory. Callers always receive
// copies.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Consultation
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Consultation),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, patientID, transcript string) (*Consultation, ReconcileGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, ReconcileGrant{}, persistenceError("create", err)
	}
	now := s.now()
	c := &Consultation{
		ID:         uuid.New().String(),
		PatientID:  patientID,
		Transcript: transcript,
		Status:     StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	s.items[c.ID] = c
	s.mu.Unlock()
	return c.clone(), newReconcileGrant(c.ID), nil
}

func (s *MemoryStore) ReconcileAnalysis(ctx context.Context, grant ReconcileGrant, analysis Analysis) error {
	if !grant.Valid() {
		return ErrInvalidGrant
	}
	if err := ctx.Err(); err != nil {
		return persistenceError("reconcile", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[grant.ConsultationID()]
	if !ok {
		return ErrNotFound
	}
	summary := analysis.Summary
	urgency := analysis.Urgency
	c.Summary = &summary
	c.Hypotheses = append([]Hypothesis{}, analysis.Hypotheses...)
	c.Urgency = &urgency
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string, requester Requester) (*Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	if !ok || !requester.canRead(c) {
		return nil, ErrNotFound
	}
	return c.clone(), nil
}

func (s *MemoryStore) ListByPatient(ctx context.Context, patientID string) ([]Consultation, error) {
	s.mu.RLock()
	out := make([]Consultation, 0)
	for _, c := range s.items {
		if c.PatientID == patientID {
			out = append(out, *c.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListQueue(ctx context.Context, statuses []Status) ([]Consultation, error) {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Consultation, 0)
	for _, c := range s.items {
		if want[c.Status] {
			out = append(out, *c.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id, doctorID string, status Status) (*Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := checkTransition(c.Status, status); err != nil {
		return nil, err
	}
	if claimsDoctor(c.Status) && c.DoctorID == nil && doctorID != "" {
		d := doctorID
		c.DoctorID = &d
	}
	c.Status = status
	c.UpdatedAt = s.now()
	return c.clone(), nil
}
