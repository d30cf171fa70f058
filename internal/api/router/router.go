package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/triage-ai-platform/internal/compliance"
	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	httpmiddleware "github.com/wolfman30/triage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/triage-ai-platform/internal/triage"
	"github.com/wolfman30/triage-ai-platform/internal/voiceagent"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	AuthSecret         string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	HealthChecks       map[string]HealthCheck

	TriageHandler       *triage.Handler
	ConsultationHandler *consultation.Handler
	VoiceHandler        *voiceagent.Handler

	// Consent and audit need the compliance database (optional in local runs).
	ConsentHandler *compliance.ConsentHandler
	ConsentChecker compliance.ConsentChecker
	AuditHandler   *compliance.AuditHandler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimiter != nil {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
	}

	// Public endpoints
	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.AuthSecret))

		// Patient routes
		api.Group(func(patient chi.Router) {
			patient.Use(httpmiddleware.RequireRole(httpmiddleware.RolePatient))
			if cfg.ConsentHandler != nil {
				patient.Get("/patient/consent", cfg.ConsentHandler.Get)
				patient.Post("/patient/consent", cfg.ConsentHandler.Accept)
				patient.Delete("/patient/consent", cfg.ConsentHandler.Withdraw)
			}

			patient.Group(func(gated chi.Router) {
				if cfg.ConsentChecker != nil {
					gated.Use(compliance.RequireConsent(cfg.ConsentChecker, cfg.Logger))
				}
				if cfg.TriageHandler != nil {
					gated.Post("/triage/process", cfg.TriageHandler.Process)
				}
				if cfg.VoiceHandler != nil {
					gated.Get("/voice/signed-url", cfg.VoiceHandler.SignedURL)
				}
				if cfg.ConsultationHandler != nil {
					gated.Get("/patient/consultations", cfg.ConsultationHandler.ListMine)
					gated.Get("/patient/consultations/{id}", cfg.ConsultationHandler.GetMine)
				}
			})
		})

		// Doctor routes
		if cfg.ConsultationHandler != nil {
			api.Group(func(doctor chi.Router) {
				doctor.Use(httpmiddleware.RequireRole(httpmiddleware.RoleDoctor))
				doctor.Get("/doctor/queue", cfg.ConsultationHandler.Queue)
				doctor.Get("/doctor/consultations/{id}", cfg.ConsultationHandler.Get)
				doctor.Patch("/doctor/consultations/{id}/status", cfg.ConsultationHandler.UpdateStatus)
			})
		}

		// Admin routes
		if cfg.AuditHandler != nil {
			api.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireRole(httpmiddleware.RoleAdmin))
				admin.Get("/admin/audit", cfg.AuditHandler.List)
			})
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = "unavailable"
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
