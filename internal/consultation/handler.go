package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/triage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/internal/transcript"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

// StatusAuditor records doctor status changes.
type StatusAuditor interface {
	LogStatusChanged(ctx context.Context, consultationID, doctorID, status string) error
}

// Handler serves the patient and doctor consultation views.
type Handler struct {
	store    Store
	profiles ProfileDirectory
	auditor  StatusAuditor
	metrics  *metrics.TriageMetrics
	logger   *logging.Logger
}

// NewHandler wires the consultation HTTP handlers. auditor and m may be nil.
func NewHandler(store Store, profiles ProfileDirectory, auditor StatusAuditor, m *metrics.TriageMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		profiles: profiles,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
	}
}

// DetailResponse is a consultation plus derived read-only views.
type DetailResponse struct {
	Consultation
	Turns              []transcript.Turn `json:"turns"`
	AllowedTransitions []Status          `json:"allowed_transitions,omitempty"`
}

// ListResponse wraps a list of consultations.
type ListResponse struct {
	Consultations []Consultation `json:"consultations"`
	Count         int            `json:"count"`
}

// ListMine handles GET /api/patient/consultations.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	items, err := h.store.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to list patient consultations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load consultations")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Consultations: items, Count: len(items)})
}

// GetMine handles GET /api/patient/consultations/{id}.
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	h.writeDetail(w, r, Requester{Role: RolePatient, PatientID: patientID}, false)
}

// Queue handles GET /api/doctor/queue.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListQueue(r.Context(), QueueStatuses)
	if err != nil {
		h.logger.Error("failed to list queue", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load queue")
		return
	}
	ranked := RankQueue(items)
	writeJSON(w, http.StatusOK, ListResponse{Consultations: ranked, Count: len(ranked)})
}

// Get handles GET /api/doctor/consultations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	h.writeDetail(w, r, Requester{Role: Role(principal.Role)}, true)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/doctor/consultations/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	principal, _ := middleware.PrincipalFromContext(r.Context())
	doctorID, err := h.profiles.DoctorIDForUser(r.Context(), principal.UserID)
	if err != nil {
		h.writeProfileError(w, err)
		return
	}

	updated, err := h.store.UpdateStatus(r.Context(), id, doctorID, status)
	if err != nil {
		var terr *TransitionError
		switch {
		case errors.As(err, &terr):
			h.metrics.ObserveStatusTransition(string(status), "rejected")
			writeError(w, http.StatusConflict, terr.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "consultation not found")
		default:
			h.metrics.ObserveStatusTransition(string(status), "error")
			h.logger.Error("failed to update status", "consultation_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}
	h.metrics.ObserveStatusTransition(string(status), "ok")
	if h.auditor != nil {
		if err := h.auditor.LogStatusChanged(r.Context(), updated.ID, doctorID, string(updated.Status)); err != nil {
			h.logger.Warn("failed to audit status change", "consultation_id", updated.ID, "error", err)
		}
	}
	h.logger.Info("consultation status updated", "consultation_id", updated.ID, "status", updated.Status)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) writeDetail(w http.ResponseWriter, r *http.Request, requester Requester, staff bool) {
	id := chi.URLParam(r, "id")
	c, err := h.store.GetByID(r.Context(), id, requester)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "consultation not found")
			return
		}
		h.logger.Error("failed to load consultation", "consultation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load consultation")
		return
	}
	resp := DetailResponse{Consultation: *c, Turns: transcript.Parse(c.Transcript)}
	if staff {
		resp.AllowedTransitions = AllowedTransitions(c.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) patientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	patientID, err := h.profiles.PatientIDForUser(r.Context(), principal.UserID)
	if err != nil {
		h.writeProfileError(w, err)
		return "", false
	}
	return patientID, true
}

func (h *Handler) writeProfileError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	h.logger.Error("failed to resolve profile", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to resolve profile")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
