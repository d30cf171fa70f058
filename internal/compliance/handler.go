package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/triage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

// ConsentChecker answers whether a user may use consent-gated routes.
type ConsentChecker interface {
	HasActiveConsent(ctx context.Context, userID string) (bool, error)
}

// RequireConsent rejects patients without an active consent record. Auth must run first.
func RequireConsent(checker ConsentChecker, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := middleware.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			consented, err := checker.HasActiveConsent(r.Context(), principal.UserID)
			if err != nil {
				logger.Error("failed to check consent", "user_id", principal.UserID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to check consent")
				return
			}
			if !consented {
				writeError(w, http.StatusForbidden, "consent required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ConsentHandler serves /api/patient/consent.
type ConsentHandler struct {
	store  *ConsentStore
	audit  *AuditService
	logger *logging.Logger
}

func NewConsentHandler(store *ConsentStore, audit *AuditService, logger *logging.Logger) *ConsentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConsentHandler{store: store, audit: audit, logger: logger}
}

// ConsentStatus is returned by GET and POST.
type ConsentStatus struct {
	Consented   bool           `json:"consented"`
	Version     string         `json:"version"`
	ConsentText string         `json:"consent_text"`
	Record      *ConsentRecord `json:"record,omitempty"`
}

func (h *ConsentHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	status := ConsentStatus{Version: ConsentVersion, ConsentText: ConsentText}
	rec, err := h.store.Active(r.Context(), principal.UserID)
	switch {
	case errors.Is(err, ErrNoConsent):
	case err != nil:
		h.logger.Error("failed to load consent", "user_id", principal.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load consent")
		return
	default:
		status.Consented = true
		status.Record = rec
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *ConsentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rec, err := h.store.Record(r.Context(), principal.UserID, clientIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("failed to record consent", "user_id", principal.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record consent")
		return
	}
	if h.audit != nil {
		if err := h.audit.LogConsentRecorded(r.Context(), principal.UserID, rec.Version); err != nil {
			h.logger.Warn("failed to audit consent", "user_id", principal.UserID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, ConsentStatus{
		Consented:   true,
		Version:     rec.Version,
		ConsentText: ConsentText,
		Record:      rec,
	})
}

func (h *ConsentHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.store.Withdraw(r.Context(), principal.UserID); err != nil {
		if errors.Is(err, ErrNoConsent) {
			writeError(w, http.StatusNotFound, "no active consent")
			return
		}
		h.logger.Error("failed to withdraw consent", "user_id", principal.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to withdraw consent")
		return
	}
	if h.audit != nil {
		if err := h.audit.LogConsentWithdrawn(r.Context(), principal.UserID); err != nil {
			h.logger.Warn("failed to audit consent withdrawal", "user_id", principal.UserID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AuditHandler serves GET /api/admin/audit.
type AuditHandler struct {
	audit  *AuditService
	logger *logging.Logger
}

func NewAuditHandler(audit *AuditService, logger *logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{audit: audit, logger: logger}
}

const maxAuditPage = 500

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AuditFilter{
		ConsultationID: q.Get("consultation_id"),
		ActorID:        q.Get("actor_id"),
		Limit:          100,
	}
	for _, raw := range strings.Split(q.Get("event_type"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.EventTypes = append(filter.EventTypes, AuditEventType(raw))
		}
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.StartTime = since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxAuditPage {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = limit
	}
	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query audit events")
		return
	}
	if events == nil {
		events = []AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// clientIP prefers RemoteAddr, which chi's RealIP middleware has already
// rewritten from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
