package voiceagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

// URLSigner issues conversation URLs.
type URLSigner interface {
	SignedURL(ctx context.Context) (string, error)
}

// Handler serves GET /api/voice/signed-url.
type Handler struct {
	signer URLSigner
	logger *logging.Logger
}

func NewHandler(signer URLSigner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{signer: signer, logger: logger}
}

func (h *Handler) SignedURL(w http.ResponseWriter, r *http.Request) {
	signed, err := h.signer.SignedURL(r.Context())
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "voice agent not configured")
			return
		}
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			h.logger.Warn("voice agent rejected signed url request", "status", upstream.StatusCode)
		} else {
			h.logger.Error("failed to get signed url", "error", err)
		}
		writeError(w, http.StatusBadGateway, "failed to get signed url")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"signed_url": signed})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
