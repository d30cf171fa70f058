package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	DatabaseServiceURL string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	AuthJWTSecret      string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MetricsEnabled     bool

	// Text-generation model
	LLMProvider         string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	SummaryTimeout      time.Duration
	SummaryMaxTokens    int
	SummaryTemperature  float64
	ReconcileTimeout    time.Duration

	// Voice agent (signed-URL handshake only)
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string
	ElevenLabsBaseURL string

	// Urgent-case alerting
	EmailProvider   string
	SendGridAPIKey  string
	EmailFrom       string
	EmailFromName   string
	AlertEmailTo    string
	AlertMinUrgency string

	IdempotencyTTL time.Duration
}

const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// Load reads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        databaseURL,
		DatabaseServiceURL: getEnv("DATABASE_SERVICE_URL", databaseURL),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderBedrock))),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		SummaryTimeout:      getEnvAsDuration("SUMMARY_TIMEOUT", 45*time.Second),
		SummaryMaxTokens:    getEnvAsInt("SUMMARY_MAX_TOKENS", 2048),
		SummaryTemperature:  getEnvAsFloat("SUMMARY_TEMPERATURE", 0.2),
		ReconcileTimeout:    getEnvAsDuration("RECONCILE_TIMEOUT", 5*time.Second),

		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsAgentID: getEnv("ELEVENLABS_AGENT_ID", ""),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		EmailProvider:   strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:       getEnv("EMAIL_FROM", ""),
		EmailFromName:   getEnv("EMAIL_FROM_NAME", "Triagem Virtual"),
		AlertEmailTo:    getEnv("ALERT_EMAIL_TO", ""),
		AlertMinUrgency: strings.ToLower(strings.TrimSpace(getEnv("ALERT_MIN_URGENCY", "emergency"))),

		IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	var errs []error
	if strings.TrimSpace(c.AuthJWTSecret) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	switch c.LLMProvider {
	case ProviderBedrock:
	case ProviderGemini:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider))
	}
	// The signed-URL handshake needs both halves; a key without an agent is a misconfiguration.
	hasKey := strings.TrimSpace(c.ElevenLabsAPIKey) != ""
	hasAgent := strings.TrimSpace(c.ElevenLabsAgentID) != ""
	if hasKey != hasAgent {
		errs = append(errs, errors.New("ELEVENLABS_API_KEY and ELEVENLABS_AGENT_ID must be set together"))
	}
	if c.SummaryTimeout <= 0 {
		errs = append(errs, errors.New("SUMMARY_TIMEOUT must be positive"))
	}
	if c.ReconcileTimeout <= 0 {
		errs = append(errs, errors.New("RECONCILE_TIMEOUT must be positive"))
	}
	if c.SummaryTemperature < 0 || c.SummaryTemperature > 1 {
		errs = append(errs, errors.New("SUMMARY_TEMPERATURE must be between 0 and 1"))
	}
	if c.SummaryMaxTokens <= 0 {
		errs = append(errs, errors.New("SUMMARY_MAX_TOKENS must be positive"))
	}
	switch c.AlertMinUrgency {
	case "emergency", "urgent", "less_urgent", "non_urgent":
	default:
		errs = append(errs, fmt.Errorf("ALERT_MIN_URGENCY %q is not a known urgency", c.AlertMinUrgency))
	}
	switch c.EmailProvider {
	case "sendgrid", "ses":
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER %q is not supported", c.EmailProvider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c != nil && (c.Env == "development" || c.Env == "dev" || c.Env == "local")
}

var (
	initOnce sync.Once
	current  *Config
	initErr  error
)

// Init loads and validates the process-wide configuration exactly once.
// Later calls return the first result.
func Init() (Config, error) {
	initOnce.Do(func() {
		cfg := Load()
		if err := cfg.Validate(); err != nil {
			initErr = err
			return
		}
		current = cfg
	})
	if initErr != nil {
		return Config{}, initErr
	}
	return *current, nil
}

// Current returns a copy of the configuration built by Init.
func Current() (Config, bool) {
	if current == nil {
		return Config{}, false
	}
	cfg := *current
	cfg.CORSAllowedOrigins = append([]string(nil), current.CORSAllowedOrigins...)
	return cfg, true
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
