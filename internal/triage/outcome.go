package triage

import (
	"fmt"

	"github.com/wolfman30/triage-ai-platform/internal/consultation"
)

// OutcomeStatus is the caller-visible result of a submission that reached
// durable storage.
type OutcomeStatus string

const (
	StatusProcessed            OutcomeStatus = "processed"
	StatusSavedWithoutAnalysis OutcomeStatus = "saved_without_analysis"
)

// Outcome always carries the created consultation id. Urgency is set only
// when the analysis was stored.
type Outcome struct {
	ConsultationID string                `json:"consultation_id"`
	Status         OutcomeStatus         `json:"status"`
	Urgency        *consultation.Urgency `json:"urgency,omitempty"`
}

// Submission is one patient intake.
type Submission struct {
	PatientID      string
	Transcript     string
	IdempotencyKey string
}

// ValidationError rejects a submission before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("triage: invalid %s: %s", e.Field, e.Message)
}

var (
	// ErrEmptyTranscript is returned for missing or whitespace-only transcripts.
	ErrEmptyTranscript = &ValidationError{Field: "transcript", Message: "transcript is required"}
	// ErrMissingPatient is returned when the caller has no patient id.
	ErrMissingPatient = &ValidationError{Field: "patient_id", Message: "patient is required"}
)
