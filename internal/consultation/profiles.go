package consultation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// ProfileDirectory maps identity-provider user ids to domain profile ids.
type ProfileDirectory interface {
	PatientIDForUser(ctx context.Context, userID string) (string, error)
	DoctorIDForUser(ctx context.Context, userID string) (string, error)
}

// MemoryProfiles is a map-backed ProfileDirectory for tests and local runs.
type MemoryProfiles struct {
	mu       sync.RWMutex
	patients map[string]string
	doctors  map[string]string
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{
		patients: make(map[string]string),
		doctors:  make(map[string]string),
	}
}

func (p *MemoryProfiles) AddPatient(userID, patientID string) {
	p.mu.Lock()
	p.patients[userID] = patientID
	p.mu.Unlock()
}

func (p *MemoryProfiles) AddDoctor(userID, doctorID string) {
	p.mu.Lock()
	p.doctors[userID] = doctorID
	p.mu.Unlock()
}

func (p *MemoryProfiles) PatientIDForUser(ctx context.Context, userID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id, ok := p.patients[userID]; ok {
		return id, nil
	}
	return "", ErrProfileNotFound
}

func (p *MemoryProfiles) DoctorIDForUser(ctx context.Context, userID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id, ok := p.doctors[userID]; ok {
		return id, nil
	}
	return "", ErrProfileNotFound
}

// PostgresProfiles resolves profiles from the patients and doctors tables.
type PostgresProfiles struct {
	db Querier
}

func NewPostgresProfiles(db Querier) *PostgresProfiles {
	if db == nil {
		panic("consultation: pgx pool required")
	}
	return &PostgresProfiles{db: db}
}

func (p *PostgresProfiles) PatientIDForUser(ctx context.Context, userID string) (string, error) {
	return p.lookup(ctx, `SELECT id::text FROM patients WHERE user_id = $1`, userID)
}

func (p *PostgresProfiles) DoctorIDForUser(ctx context.Context, userID string) (string, error) {
	return p.lookup(ctx, `SELECT id::text FROM doctors WHERE user_id = $1`, userID)
}

func (p *PostgresProfiles) lookup(ctx context.Context, query, userID string) (string, error) {
	var id string
	if err := p.db.QueryRow(ctx, query, userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfileNotFound
		}
		return "", fmt.Errorf("consultation: profile lookup: %w", err)
	}
	return id, nil
}
