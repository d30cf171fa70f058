package triage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	"github.com/wolfman30/triage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/triage-ai-platform/internal/transcript"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

const maxRequestBytes = 1 << 20

// Submitter runs one intake.
type Submitter interface {
	SubmitTriage(ctx context.Context, sub Submission) (Outcome, error)
}

// Handler serves POST /api/triage/process.
type Handler struct {
	submitter Submitter
	profiles  consultation.ProfileDirectory
	logger    *logging.Logger
}

func NewHandler(submitter Submitter, profiles consultation.ProfileDirectory, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{submitter: submitter, profiles: profiles, logger: logger}
}

// ProcessRequest accepts either a preformatted transcript or structured turns.
type ProcessRequest struct {
	Transcript string            `json:"transcript"`
	Turns      []transcript.Turn `json:"turns,omitempty"`
}

func (req ProcessRequest) text() string {
	if strings.TrimSpace(req.Transcript) != "" {
		return req.Transcript
	}
	spoken := make([]transcript.Turn, 0, len(req.Turns))
	for _, turn := range req.Turns {
		if strings.TrimSpace(turn.Text) != "" {
			spoken = append(spoken, turn)
		}
	}
	// Labels alone are not a conversation; all-blank turns format to "".
	return transcript.Format(spoken)
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	patientID, err := h.profiles.PatientIDForUser(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, consultation.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("failed to resolve patient", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve patient")
		return
	}

	var req ProcessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.submitter.SubmitTriage(r.Context(), Submission{
		PatientID:      patientID,
		Transcript:     req.text(),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		var verr *ValidationError
		var perr *consultation.PersistenceError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Message)
		case errors.As(err, &perr):
			writeError(w, http.StatusInternalServerError, "failed to save consultation")
		default:
			h.logger.Error("triage submission failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save consultation")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
