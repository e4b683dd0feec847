package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-3.5-turbo)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Summary Configuration:
// - SUMMARY_TARGET_LANGUAGE: Output language of summaries (default: zh)
// - SUMMARY_CRON_EXPR: Automatic sweep schedule (default: 0 * * * *)
// - SUMMARY_WATCH_DIRS: Comma-separated directories swept for new transcripts
// - SUMMARY_NARRATIVE_TIMEOUT: Narrative call timeout in seconds (default: 90)
// - SUMMARY_AD_DEFAULT_SECONDS: Assumed ad span length when the model gives
//   only a start time (default: 30)
// - SUMMARY_NARRATIVE_PROMPT / SUMMARY_SEGMENT_PROMPT: Full prompt overrides
//
// HTTP Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
//
// Storage Configuration:
// - DB_PATH: SQLite database path (default: /app/data/summarizer.db)
//
// System Configuration:
// - LOG_LEVEL: debug|info|warn|error (default: info)
type Config struct {
	LLM     LLMConfig     `json:"llm"`
	Summary SummaryConfig `json:"summary"`
	HTTP    HTTPConfig    `json:"http"`
	Storage StorageConfig `json:"storage"`
	System  SystemConfig  `json:"system"`
}

// LLMConfig holds the configuration for the chat-completion client.
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, etc.).
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// SummaryConfig holds the summarization behavior knobs.
type SummaryConfig struct {
	TargetLanguage          language.Tag `json:"target_language"`
	CronExpr                string       `json:"cron_expr"`
	WatchDirs               []string     `json:"watch_dirs"`
	NarrativeTimeoutSeconds int          `json:"narrative_timeout_seconds"`
	AdDurationSeconds       int          `json:"ad_duration_seconds"`
	NarrativePrompt         string       `json:"narrative_prompt"`
	SegmentPrompt           string       `json:"segment_prompt"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type StorageConfig struct {
	DBPath string `json:"db_path"`
}

type SystemConfig struct {
	LogLevel string `json:"log_level"`
}

// Option is a function type for configuring Config.
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Summary: SummaryConfig{
			TargetLanguage:          parseLanguage(getEnvString("SUMMARY_TARGET_LANGUAGE", "zh")),
			CronExpr:                getEnvString("SUMMARY_CRON_EXPR", "0 * * * *"),
			WatchDirs:               splitDirs(getEnvString("SUMMARY_WATCH_DIRS", "")),
			NarrativeTimeoutSeconds: getEnvInt("SUMMARY_NARRATIVE_TIMEOUT", 90),
			AdDurationSeconds:       getEnvInt("SUMMARY_AD_DEFAULT_SECONDS", 30),
			NarrativePrompt:         getEnvString("SUMMARY_NARRATIVE_PROMPT", ""),
			SegmentPrompt:           getEnvString("SUMMARY_SEGMENT_PROMPT", ""),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			DBPath: getEnvString("DB_PATH", "/app/data/summarizer.db"),
		},
		System: SystemConfig{
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set.
func (c *Config) validate() error {
	if c.Summary.NarrativeTimeoutSeconds < 1 {
		return fmt.Errorf("SUMMARY_NARRATIVE_TIMEOUT must be greater than 0")
	}
	if c.Summary.AdDurationSeconds < 1 {
		return fmt.Errorf("SUMMARY_AD_DEFAULT_SECONDS must be greater than 0")
	}
	return nil
}

func parseLanguage(value string) language.Tag {
	tag, err := language.Parse(value)
	if err != nil {
		return language.Chinese
	}
	return tag
}

func splitDirs(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		if dir := strings.TrimSpace(part); dir != "" {
			ret = append(ret, dir)
		}
	}
	return ret
}

// getEnvString gets a string value from environment variables with default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an int value from environment variables with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
