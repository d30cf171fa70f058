// Package triage runs patient intake: persist the transcript, summarize it,
// and attach the analysis to the stored consultation.
package triage

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/internal/summarizer"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("triage.internal.triage")

const (
	defaultReconcileTimeout = 5 * time.Second
	outcomeRejected         = "rejected"
	outcomeFailed           = "failed"
	degradeReconcile        = "reconcile"
)

// Summarizer produces an analysis for a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (consultation.Analysis, error)
}

// Auditor records intake events. Implementations must not store transcript text.
type Auditor interface {
	LogTriageSubmitted(ctx context.Context, consultationID, patientID string) error
	LogTriageProcessed(ctx context.Context, consultationID, urgency string) error
	LogTriageDegraded(ctx context.Context, consultationID, reason string) error
}

// UrgentNotifier is told about every processed consultation and decides
// whether to alert.
type UrgentNotifier interface {
	NotifyUrgent(ctx context.Context, consultationID string, urgency consultation.Urgency) error
}

// Options carries the optional collaborators.
type Options struct {
	Auditor          Auditor
	Notifier         UrgentNotifier
	Idempotency      IdempotencyStore
	Metrics          *metrics.TriageMetrics
	Logger           *logging.Logger
	ReconcileTimeout time.Duration
}

// Orchestrator implements the two-phase intake.
type Orchestrator struct {
	store            consultation.Store
	summarizer       Summarizer
	auditor          Auditor
	notifier         UrgentNotifier
	idempotency      IdempotencyStore
	metrics          *metrics.TriageMetrics
	logger           *logging.Logger
	reconcileTimeout time.Duration
}

func NewOrchestrator(store consultation.Store, s Summarizer, opts Options) *Orchestrator {
	if store == nil {
		panic("triage: consultation store cannot be nil")
	}
	if s == nil {
		panic("triage: summarizer cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := opts.ReconcileTimeout
	if timeout <= 0 {
		timeout = defaultReconcileTimeout
	}
	return &Orchestrator{
		store:            store,
		summarizer:       s,
		auditor:          opts.Auditor,
		notifier:         opts.Notifier,
		idempotency:      opts.Idempotency,
		metrics:          opts.Metrics,
		logger:           logger,
		reconcileTimeout: timeout,
	}
}

// SubmitTriage persists the transcript and then tries to enrich it. Errors
// are returned only when nothing was stored; once the consultation exists
// every failure degrades to StatusSavedWithoutAnalysis.
func (o *Orchestrator) SubmitTriage(ctx context.Context, sub Submission) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "triage.submit")
	defer span.End()

	if strings.TrimSpace(sub.Transcript) == "" {
		o.metrics.ObserveSubmission(outcomeRejected)
		return Outcome{}, ErrEmptyTranscript
	}
	if strings.TrimSpace(sub.PatientID) == "" {
		o.metrics.ObserveSubmission(outcomeRejected)
		return Outcome{}, ErrMissingPatient
	}

	if prev, ok := o.replay(ctx, sub); ok {
		span.SetAttributes(attribute.Bool("triage.idempotent_replay", true))
		return prev, nil
	}

	created, grant, err := o.store.Create(ctx, sub.PatientID, sub.Transcript)
	if err != nil {
		o.metrics.ObserveSubmission(outcomeFailed)
		o.logger.Error("failed to persist transcript", "patient_id", sub.PatientID, "error", err)
		span.RecordError(err)
		return Outcome{}, err
	}
	span.SetAttributes(attribute.String("triage.consultation_id", created.ID))
	logger := &logging.Logger{Logger: o.logger.With("consultation_id", created.ID)}

	// The transcript is durable. Follow-up writes ignore request cancellation.
	detached := context.WithoutCancel(ctx)
	if o.auditor != nil {
		if err := o.auditor.LogTriageSubmitted(detached, created.ID, sub.PatientID); err != nil {
			logger.Warn("failed to audit submission", "error", err)
		}
	}

	analysis, err := o.summarizer.Summarize(ctx, sub.Transcript)
	if err != nil {
		reason := string(summarizer.ReasonOf(err))
		if reason == "" {
			reason = string(summarizer.ReasonTransport)
		}
		logger.Warn("summarization failed, saved without analysis", "reason", reason, "error", err)
		return o.degrade(detached, sub, created.ID, reason), nil
	}

	if err := o.reconcile(detached, grant, analysis); err != nil {
		logger.Error("failed to store analysis, saved without analysis", "error", err)
		span.RecordError(err)
		return o.degrade(detached, sub, created.ID, degradeReconcile), nil
	}

	urgency := analysis.Urgency
	outcome := Outcome{ConsultationID: created.ID, Status: StatusProcessed, Urgency: &urgency}
	logger.Info("triage processed", "urgency", urgency, "hypotheses", len(analysis.Hypotheses))
	span.SetAttributes(attribute.String("triage.urgency", string(urgency)))
	o.metrics.ObserveSubmission(string(StatusProcessed))
	if o.auditor != nil {
		if err := o.auditor.LogTriageProcessed(detached, created.ID, string(urgency)); err != nil {
			logger.Warn("failed to audit processed triage", "error", err)
		}
	}
	o.notify(detached, logger, created.ID, urgency)
	o.remember(detached, sub, outcome)
	return outcome, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, grant consultation.ReconcileGrant, analysis consultation.Analysis) error {
	ctx, cancel := context.WithTimeout(ctx, o.reconcileTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "triage.reconcile")
	defer span.End()
	if err := o.store.ReconcileAnalysis(ctx, grant, analysis); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (o *Orchestrator) degrade(ctx context.Context, sub Submission, consultationID, reason string) Outcome {
	outcome := Outcome{ConsultationID: consultationID, Status: StatusSavedWithoutAnalysis}
	o.metrics.ObserveSubmission(string(StatusSavedWithoutAnalysis))
	if o.auditor != nil {
		if err := o.auditor.LogTriageDegraded(ctx, consultationID, reason); err != nil {
			o.logger.Warn("failed to audit degraded triage", "consultation_id", consultationID, "error", err)
		}
	}
	o.remember(ctx, sub, outcome)
	return outcome
}

func (o *Orchestrator) notify(ctx context.Context, logger *logging.Logger, consultationID string, urgency consultation.Urgency) {
	if o.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.reconcileTimeout)
	defer cancel()
	if err := o.notifier.NotifyUrgent(ctx, consultationID, urgency); err != nil {
		logger.Warn("failed to send urgent alert", "error", err)
	}
}

func (o *Orchestrator) replay(ctx context.Context, sub Submission) (Outcome, bool) {
	if o.idempotency == nil || sub.IdempotencyKey == "" {
		return Outcome{}, false
	}
	prev, ok, err := o.idempotency.Lookup(ctx, sub.PatientID, sub.IdempotencyKey)
	if err != nil {
		o.logger.Warn("idempotency lookup failed", "error", err)
		return Outcome{}, false
	}
	if ok {
		o.logger.Info("replaying triage outcome", "consultation_id", prev.ConsultationID)
	}
	return prev, ok
}

func (o *Orchestrator) remember(ctx context.Context, sub Submission, outcome Outcome) {
	if o.idempotency == nil || sub.IdempotencyKey == "" {
		return
	}
	if err := o.idempotency.Remember(ctx, sub.PatientID, sub.IdempotencyKey, outcome); err != nil {
		o.logger.Warn("failed to remember triage outcome", "consultation_id", outcome.ConsultationID, "error", err)
	}
}
