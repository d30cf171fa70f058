package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/triage-ai-platform/internal/config"
	"github.com/wolfman30/triage-ai-platform/internal/llm"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/internal/summarizer"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

// LLM bundles the selected client with the model id it should be asked for.
type LLM struct {
	Client   llm.Client
	Model    string
	Provider string
	close    func() error
}

// Close releases provider resources.
func (l *LLM) Close() error {
	if l == nil || l.close == nil {
		return nil
	}
	return l.close()
}

// BuildLLMClient selects the text-generation provider from config. A missing
// Bedrock model id yields llm.UnavailableClient so intake still stores
// transcripts.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.LLMProvider {
	case appconfig.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("summarizer provider configured", "provider", "gemini", "model", cfg.GeminiModelID)
		return &LLM{Client: client, Model: cfg.GeminiModelID, Provider: appconfig.ProviderGemini, close: client.Close}, nil
	case appconfig.ProviderBedrock, "":
		model := strings.TrimSpace(cfg.BedrockModelID)
		if model == "" || awsCfg == nil {
			logger.Warn("no Bedrock model configured; consultations will be saved without analysis")
			return &LLM{Client: llm.UnavailableClient{}, Provider: appconfig.ProviderBedrock}, nil
		}
		client := llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg))
		logger.Info("summarizer provider configured", "provider", "bedrock", "model", model)
		return &LLM{Client: client, Model: model, Provider: appconfig.ProviderBedrock}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unsupported llm provider %q", cfg.LLMProvider)
	}
}

// BuildSummarizer wires the summarizer with the configured limits.
func BuildSummarizer(cfg *appconfig.Config, model *LLM, m *metrics.TriageMetrics, logger *logging.Logger) *summarizer.Summarizer {
	temperature := float32(cfg.SummaryTemperature)
	return summarizer.New(model.Client, summarizer.Config{
		Model:       model.Model,
		Timeout:     cfg.SummaryTimeout,
		MaxTokens:   int32(cfg.SummaryMaxTokens),
		Temperature: &temperature,
	}, m, logger.WithComponent("summarizer"))
}
