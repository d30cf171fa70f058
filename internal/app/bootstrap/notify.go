package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/triage-ai-platform/internal/config"
	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	"github.com/wolfman30/triage-ai-platform/internal/notify"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

// BuildEmailSender picks SendGrid or SES per EMAIL_PROVIDER and falls back to
// the logging stub when credentials are missing.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "ses":
		if awsCfg != nil && cfg.EmailFrom != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFrom,
				FromName:  cfg.EmailFromName,
			}, logger)
		}
	default:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	logger.Warn("email provider not configured; urgent alerts will only be logged", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger)
}

// BuildUrgentAlerter returns nil when no on-call address is configured.
func BuildUrgentAlerter(cfg *appconfig.Config, sender notify.EmailSender, m *metrics.TriageMetrics, logger *logging.Logger) *notify.UrgentAlerter {
	if cfg.AlertEmailTo == "" {
		return nil
	}
	return notify.NewUrgentAlerter(sender, notify.AlertConfig{
		To:         cfg.AlertEmailTo,
		MinUrgency: consultation.Urgency(cfg.AlertMinUrgency),
	}, m, logger.WithComponent("alerts"))
}
