// Package summarizer turns a triage transcript into a structured clinical
// analysis with a single text-generation call.
package summarizer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	"github.com/wolfman30/triage-ai-platform/internal/llm"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("triage.internal.summarizer")

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
)

// Config tunes the model call.
type Config struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int32
	// Temperature nil selects the default; zero means greedy sampling.
	Temperature *float32
}

// Summarizer calls the model once per transcript. It never retries.
type Summarizer struct {
	client      llm.Client
	model       string
	timeout     time.Duration
	maxTokens   int32
	temperature float32
	metrics     *metrics.TriageMetrics
	logger      *logging.Logger
}

func New(client llm.Client, cfg Config, m *metrics.TriageMetrics, logger *logging.Logger) *Summarizer {
	if client == nil {
		panic("summarizer: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := float32(defaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return &Summarizer{
		client:      client,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxTokens:   maxTokens,
		temperature: temperature,
		metrics:     m,
		logger:      logger,
	}
}

// Summarize returns the validated analysis or a *FailedError.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (consultation.Analysis, error) {
	ctx, span := tracer.Start(ctx, "summarizer.summarize")
	defer span.End()

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	analysis, err := s.summarize(callCtx, transcript)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		reason := ReasonOf(err)
		s.metrics.ObserveSummarizationLatency("error", elapsed)
		s.metrics.ObserveSummarizationFailure(string(reason))
		span.SetAttributes(attribute.String("triage.summarizer.failure_reason", string(reason)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(reason))
		return consultation.Analysis{}, err
	}
	s.metrics.ObserveSummarizationLatency("ok", elapsed)
	span.SetAttributes(
		attribute.String("triage.urgency", string(analysis.Urgency)),
		attribute.Int("triage.hypotheses", len(analysis.Hypotheses)),
	)
	return analysis, nil
}

func (s *Summarizer) summarize(ctx context.Context, transcript string) (consultation.Analysis, error) {
	resp, err := s.client.Complete(ctx, llm.Request{
		Model:       s.model,
		System:      []string{SystemPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildUserPrompt(transcript)}},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return consultation.Analysis{}, fail(ReasonTimeout, err)
		}
		return consultation.Analysis{}, fail(ReasonTransport, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return consultation.Analysis{}, fail(ReasonEmpty, errors.New("model returned no text"))
	}
	if resp.StopReason == "max_tokens" || resp.StopReason == "MAX_TOKENS" {
		s.logger.Warn("model output hit the token limit", "output_tokens", resp.Usage.OutputTokens)
	}
	return Parse(resp.Text)
}
