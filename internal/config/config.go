package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"animerec/internal/validation"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

var defaultModels = map[string]string{
	ProviderGemini: "gemini-2.5-flash",
	ProviderOpenAI: "gpt-4o-mini",
	ProviderOllama: "llama3.1",
}

type Config struct {
	Port string `validate:"required"`

	LogLevel  string
	LogFormat string `validate:"omitempty,oneof=json text"`
	LogFile   string

	// TrustedProxies lists CIDRs or IPs whose X-Forwarded-For / X-Real-IP
	// headers are believed.
	TrustedProxies []string

	AniList  AniListConfig
	LLM      LLMConfig
	Quota    QuotaConfig
	Redis    RedisConfig
	Telegram TelegramConfig
}

type AniListConfig struct {
	URL           string        `validate:"required,url"`
	Timeout       time.Duration `validate:"min=1s"`
	RatePerMinute int           `validate:"min=1"`
	// DetailConcurrency of 1 resolves titles strictly one after another.
	DetailConcurrency int `validate:"min=1"`
}

type LLMConfig struct {
	Provider      string  `validate:"required,oneof=gemini openai ollama"`
	Model         string  `validate:"required"`
	Temperature   float64 `validate:"min=0"`
	GeminiAPIKey  string  `validate:"required_if=Provider gemini"`
	OpenAIAPIKey  string  `validate:"required_if=Provider openai"`
	OpenAIBaseURL string  `validate:"omitempty,url"`
	OllamaURL     string  `validate:"omitempty,url"`
}

type QuotaConfig struct {
	// SearchesPerMinute of 0 disables the limit.
	SearchesPerMinute int `validate:"min=0"`
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
}

// Enabled reports whether the Telegram front end should be mounted.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// Enabled reports whether a shared Redis store was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load reads the process environment into a validated Config.
func Load() (*Config, error) {
	timeout, err := GetEnvDuration("ANILIST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	rate, err := GetEnvInt("ANILIST_RATE_PER_MINUTE", 90)
	if err != nil {
		return nil, err
	}
	concurrency, err := GetEnvInt("DETAIL_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	quota, err := GetEnvInt("SEARCH_QUOTA_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}
	temperature, err := GetEnvFloat("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}

	provider := GetEnv("LLM_PROVIDER", ProviderGemini)

	cfg := &Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),
		LogFile:   GetEnv("LOG_FILE", ""),

		TrustedProxies: GetEnvList("TRUSTED_PROXIES"),
		AniList: AniListConfig{
			URL:               GetEnv("ANILIST_URL", "https://graphql.anilist.co"),
			Timeout:           timeout,
			RatePerMinute:     rate,
			DetailConcurrency: concurrency,
		},
		LLM: LLMConfig{
			Provider:      provider,
			Model:         GetEnv("LLM_MODEL", defaultModels[provider]),
			Temperature:   temperature,
			GeminiAPIKey:  GetEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:  GetEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: GetEnv("OPENAI_BASE_URL", ""),
			OllamaURL:     GetEnv("OLLAMA_URL", "http://localhost:11434"),
		},
		Quota: QuotaConfig{
			SearchesPerMinute: quota,
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", ""),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
		},
		Telegram: TelegramConfig{
			BotToken:      GetEnv("BOT_TOKEN", ""),
			WebhookSecret: GetEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
	}

	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetEnv retrieves values from environment files based on the key it matches,
// returns a string (value) if not empty
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvList splits a comma-separated value, dropping empty items.
func GetEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func GetEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func GetEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func GetEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}
