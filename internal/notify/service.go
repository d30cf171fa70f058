package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

const (
	alertResultSent    = "sent"
	alertResultSkipped = "skipped"
	alertResultFailed  = "failed"
)

// UrgentAlerter emails the on-call address when a processed consultation is
// at least as urgent as the configured threshold. Messages carry only the
// consultation id and urgency.
type UrgentAlerter struct {
	email     EmailSender
	to        string
	threshold consultation.Urgency
	metrics   *metrics.TriageMetrics
	logger    *logging.Logger
}

// AlertConfig configures UrgentAlerter.
type AlertConfig struct {
	To         string
	MinUrgency consultation.Urgency
}

// NewUrgentAlerter creates an alerter. An unknown MinUrgency falls back to emergency.
func NewUrgentAlerter(email EmailSender, cfg AlertConfig, m *metrics.TriageMetrics, logger *logging.Logger) *UrgentAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	threshold, ok := consultation.ParseUrgency(string(cfg.MinUrgency))
	if !ok {
		threshold = consultation.UrgencyEmergency
	}
	return &UrgentAlerter{
		email:     email,
		to:        strings.TrimSpace(cfg.To),
		threshold: threshold,
		metrics:   m,
		logger:    logger,
	}
}

// ShouldAlert reports whether urgency reaches the threshold.
func (a *UrgentAlerter) ShouldAlert(urgency consultation.Urgency) bool {
	if _, ok := consultation.ParseUrgency(string(urgency)); !ok {
		return false
	}
	return urgency.Rank() <= a.threshold.Rank()
}

// NotifyUrgent sends the alert if urgency qualifies. It is safe to call for every
// processed consultation.
func (a *UrgentAlerter) NotifyUrgent(ctx context.Context, consultationID string, urgency consultation.Urgency) error {
	if !a.ShouldAlert(urgency) {
		return nil
	}
	if a.email == nil || a.to == "" {
		a.logger.Debug("notify: alerting not configured, skipping", "consultation_id", consultationID)
		a.metrics.ObserveAlert(string(urgency), alertResultSkipped)
		return nil
	}

	msg := EmailMessage{
		To:      a.to,
		Subject: fmt.Sprintf("[Triagem] Caso %s aguardando revisão", urgencyLabel(urgency)),
		Body:    buildAlertBody(consultationID, urgency),
		AlertID: uuid.NewString(),
	}
	if err := a.email.Send(ctx, msg); err != nil {
		a.metrics.ObserveAlert(string(urgency), alertResultFailed)
		return fmt.Errorf("notify: send urgent alert %s: %w", msg.AlertID, err)
	}
	a.metrics.ObserveAlert(string(urgency), alertResultSent)
	a.logger.Info("urgent alert sent", "alert_id", msg.AlertID, "consultation_id", consultationID, "urgency", urgency)
	return nil
}

func urgencyLabel(u consultation.Urgency) string {
	switch u {
	case consultation.UrgencyEmergency:
		return "EMERGÊNCIA"
	case consultation.UrgencyUrgent:
		return "URGENTE"
	case consultation.UrgencyLessUrgent:
		return "pouco urgente"
	default:
		return "não urgente"
	}
}

func buildAlertBody(consultationID string, urgency consultation.Urgency) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uma nova triagem foi classificada como %s.\n\n", urgencyLabel(urgency))
	fmt.Fprintf(&b, "Consulta: %s\n", consultationID)
	fmt.Fprintf(&b, "Urgência: %s\n\n", urgency)
	b.WriteString("Acesse a fila médica para revisar o caso.")
	return b.String()
}
