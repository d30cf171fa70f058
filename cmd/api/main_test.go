package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appconfig "github.com/wolfman30/triage-ai-platform/internal/config"
	httpmiddleware "github.com/wolfman30/triage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/triage-ai-platform/internal/triage"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

const testSecret = "main-test-secret"

func devConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:             "0",
		Env:              "development",
		AuthJWTSecret:    testSecret,
		MetricsEnabled:   true,
		RateLimitRPS:     100,
		RateLimitBurst:   100,
		LLMProvider:      appconfig.ProviderBedrock,
		SummaryTimeout:   time.Second,
		SummaryMaxTokens: 256,
		ReconcileTimeout: time.Second,
		EmailProvider:    "sendgrid",
		AlertMinUrgency:  "emergency",
		IdempotencyTTL:   time.Hour,
	}
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	claims := httpmiddleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveSubmission("processed")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "triage_intake_submissions_total") {
		t.Fatalf("expected submissions counter to be exported")
	}
}

func TestBuildAppRequiresDatabaseOutsideDevelopment(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"

	if _, err := buildApp(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildAppDevelopmentServesIntake(t *testing.T) {
	a, err := buildApp(context.Background(), devConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer a.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/triage/process", strings.NewReader(`{"transcript":"Paciente: dor no peito"}`))
	req.Header.Set("Authorization", bearer(t, "user-1", httpmiddleware.RolePatient))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var outcome triage.Outcome
	if err := json.Unmarshal(rr.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.ConsultationID == "" {
		t.Fatalf("expected consultation id")
	}
	if outcome.Status != triage.StatusSavedWithoutAnalysis || outcome.Urgency != nil {
		t.Fatalf("expected degraded outcome without a model, got %+v", outcome)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/patient/consultations/"+outcome.ConsultationID, nil)
	req.Header.Set("Authorization", bearer(t, "user-1", httpmiddleware.RolePatient))
	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected patient to read own consultation, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `triage_intake_submissions_total{outcome="saved_without_analysis"} 1`) {
		t.Fatalf("expected degraded submission to be counted, got:\n%s", rr.Body.String())
	}
}

func TestBuildAppDevelopmentHasNoConsentRoutes(t *testing.T) {
	a, err := buildApp(context.Background(), devConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer a.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/patient/consent", nil)
	req.Header.Set("Authorization", bearer(t, "user-1", httpmiddleware.RolePatient))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected consent routes to be absent without a database, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rr.Code)
	}
}

func TestNeedsAWS(t *testing.T) {
	cases := []struct {
		cfg  appconfig.Config
		want bool
	}{
		{appconfig.Config{LLMProvider: appconfig.ProviderBedrock}, false},
		{appconfig.Config{LLMProvider: appconfig.ProviderBedrock, BedrockModelID: "m"}, true},
		{appconfig.Config{LLMProvider: appconfig.ProviderGemini, EmailProvider: "ses"}, true},
		{appconfig.Config{LLMProvider: appconfig.ProviderGemini, EmailProvider: "sendgrid"}, false},
	}
	for _, tc := range cases {
		cfg := tc.cfg
		if got := needsAWS(&cfg); got != tc.want {
			t.Fatalf("needsAWS(%+v) = %v, want %v", tc.cfg, got, tc.want)
		}
	}
}
