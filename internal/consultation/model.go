// Package consultation holds the consultation record, its review lifecycle,
// the doctor queue ordering, and the stores that persist it.
package consultation

import (
	"strings"
	"time"
)

// Urgency is the severity assigned by the summarization step.
type Urgency string

const (
	UrgencyEmergency  Urgency = "emergency"
	UrgencyUrgent     Urgency = "urgent"
	UrgencyLessUrgent Urgency = "less_urgent"
	UrgencyNonUrgent  Urgency = "non_urgent"
)

// unrankedUrgency sorts consultations without analysis after every known level.
const unrankedUrgency = 4

var urgencyRanks = map[Urgency]int{
	UrgencyEmergency:  0,
	UrgencyUrgent:     1,
	UrgencyLessUrgent: 2,
	UrgencyNonUrgent:  3,
}

// ParseUrgency accepts only the four known levels. There is no default.
func ParseUrgency(raw string) (Urgency, bool) {
	u := Urgency(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := urgencyRanks[u]; !ok {
		return "", false
	}
	return u, true
}

// Rank orders urgencies from most (0) to least (3) severe; unknown values rank 4.
func (u Urgency) Rank() int {
	if rank, ok := urgencyRanks[u]; ok {
		return rank
	}
	return unrankedUrgency
}

// RankOf returns the rank of an optional urgency.
func RankOf(u *Urgency) int {
	if u == nil {
		return unrankedUrgency
	}
	return u.Rank()
}

// Probability is the likelihood band of a diagnostic hypothesis.
type Probability string

const (
	ProbabilityHigh   Probability = "alta"
	ProbabilityMedium Probability = "media"
	ProbabilityLow    Probability = "baixa"
)

// ParseProbability accepts only alta, media and baixa.
func ParseProbability(raw string) (Probability, bool) {
	p := Probability(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case ProbabilityHigh, ProbabilityMedium, ProbabilityLow:
		return p, true
	default:
		return "", false
	}
}

// Status is the doctor review lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusInReview  Status = "in_review"
	StatusContacted Status = "contacted"
	StatusCompleted Status = "completed"
)

// ParseStatus validates a status coming from a request or a row.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusWaiting, StatusInReview, StatusContacted, StatusCompleted:
		return s, true
	default:
		return "", false
	}
}

// SOAP is the four-section clinical note.
type SOAP struct {
	Subjetivo string `json:"subjetivo"`
	Objetivo  string `json:"objetivo"`
	Avaliacao string `json:"avaliacao"`
	Plano     string `json:"plano"`
}

// ClinicalSummary is the structured extraction stored as jsonb.
type ClinicalSummary struct {
	SOAP            SOAP   `json:"soap"`
	QueixaPrincipal string `json:"queixa_principal"`
	ResumoGeral     string `json:"resumo_geral"`
}

// Hypothesis is one entry of the ordered differential.
type Hypothesis struct {
	Hypothesis    string      `json:"hypothesis"`
	Probability   Probability `json:"probability,omitempty"`
	Justification string      `json:"justification"`
}

// Analysis is the field-set written by reconciliation. The three fields are
// always stored together.
type Analysis struct {
	Summary    ClinicalSummary `json:"summary"`
	Hypotheses []Hypothesis    `json:"hypotheses"`
	Urgency    Urgency         `json:"urgency"`
}

// Consultation is one triage intake and its review state.
type Consultation struct {
	ID         string           `json:"id"`
	PatientID  string           `json:"patient_id"`
	DoctorID   *string          `json:"doctor_id"`
	Transcript string           `json:"transcript"`
	Summary    *ClinicalSummary `json:"summary"`
	Hypotheses []Hypothesis     `json:"hypotheses"`
	Urgency    *Urgency         `json:"urgency"`
	Status     Status           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// HasAnalysis reports whether reconciliation has attached an analysis.
func (c *Consultation) HasAnalysis() bool {
	return c != nil && c.Summary != nil && c.Urgency != nil
}

func (c *Consultation) clone() *Consultation {
	if c == nil {
		return nil
	}
	out := *c
	if c.DoctorID != nil {
		doctorID := *c.DoctorID
		out.DoctorID = &doctorID
	}
	if c.Summary != nil {
		summary := *c.Summary
		out.Summary = &summary
	}
	if c.Hypotheses != nil {
		out.Hypotheses = append([]Hypothesis(nil), c.Hypotheses...)
	}
	if c.Urgency != nil {
		urgency := *c.Urgency
		out.Urgency = &urgency
	}
	return &out
}

// Role is the role claim supplied by the identity provider.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Requester describes who is reading a consultation.
type Requester struct {
	Role      Role
	PatientID string
	DoctorID  string
}

// canRead applies row ownership: patients see their own rows, staff see all.
func (r Requester) canRead(c *Consultation) bool {
	switch r.Role {
	case RoleDoctor, RoleAdmin:
		return true
	case RolePatient:
		return r.PatientID != "" && c.PatientID == r.PatientID
	default:
		return false
	}
}
