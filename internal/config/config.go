package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"smart-planner/internal/llm"
)

// EnvPrefix prefixes every environment variable, e.g. PLANNER_TELEGRAM_TOKEN.
const EnvPrefix = "PLANNER"

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken  string
	DatabaseURL    string        `validate:"required"`
	HTTPAddr       string        `validate:"required"`
	AllowedOrigins []string      `validate:"dive,url"`
	ReportInterval time.Duration `validate:"gt=0"`
	SuggestDailyAt string        `validate:"required,clock"`
	LogLevel       slog.Level

	LLM       LLMConfig
	Apply     ApplyConfig
	Debounce  time.Duration `validate:"gt=0"`
	EnableBot bool
}

// LLMConfig selects and tunes the text-completion backend.
type LLMConfig struct {
	Provider string
	Model    string        `validate:"required"`
	APIKey   string
	BaseURL  string        `validate:"omitempty,url"`
	Timeout  time.Duration `validate:"gt=0"`
}

// ApplyConfig holds pacing for the apply-sequence orchestrator.
type ApplyConfig struct {
	SchedulePace    time.Duration `validate:"gte=0"`
	ScheduleSettle  time.Duration `validate:"gte=0"`
	BreakdownPace   time.Duration `validate:"gte=0"`
	BreakdownSettle time.Duration `validate:"gte=0"`
}

// Options tweak Load. The zero value loads .env and the environment only.
type Options struct {
	// ConfigFile is an optional YAML file merged under environment overrides.
	ConfigFile string
	// EnableBot requires a Telegram token.
	EnableBot bool
	// SkipDotenv disables reading .env from the working directory.
	SkipDotenv bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("database.url", "smart_planner.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("report.interval", 5*time.Hour)
	v.SetDefault("suggest.daily_at", "08:00")
	v.SetDefault("log.level", "info")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 20*time.Second)

	v.SetDefault("apply.schedule_pace", 500*time.Millisecond)
	v.SetDefault("apply.schedule_settle", 800*time.Millisecond)
	v.SetDefault("apply.breakdown_pace", 300*time.Millisecond)
	v.SetDefault("apply.breakdown_settle", 200*time.Millisecond)
	v.SetDefault("breakdown.debounce", time.Second)
}

// defaultModels maps a provider to the model used when llm.model is empty.
var defaultModels = map[string]string{
	"gemini":    "gemini-2.5-flash",
	"openai":    "gpt-4o-mini",
	"ollama":    "llama3.1",
	"anthropic": "claude-3-5-haiku-latest",
}

// Load reads configuration from .env, an optional YAML file and PLANNER_* variables.
func Load(opts Options) (Config, error) {
	if !opts.SkipDotenv {
		// Missing .env is fine; only real parse errors matter.
		if err := godotenv.Load(); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	return fromViper(v, opts.EnableBot)
}

func fromViper(v *viper.Viper, enableBot bool) (Config, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))
	model := strings.TrimSpace(v.GetString("llm.model"))
	if model == "" {
		model = defaultModels[provider]
	}

	cfg := Config{
		TelegramToken:  strings.TrimSpace(v.GetString("telegram.token")),
		DatabaseURL:    strings.TrimSpace(v.GetString("database.url")),
		HTTPAddr:       strings.TrimSpace(v.GetString("http.addr")),
		AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
		ReportInterval: v.GetDuration("report.interval"),
		SuggestDailyAt: strings.TrimSpace(v.GetString("suggest.daily_at")),
		LogLevel:       parseLevel(v.GetString("log.level")),
		LLM: LLMConfig{
			Provider: provider,
			Model:    model,
			APIKey:   strings.TrimSpace(v.GetString("llm.api_key")),
			BaseURL:  strings.TrimSpace(v.GetString("llm.base_url")),
			Timeout:  v.GetDuration("llm.timeout"),
		},
		Apply: ApplyConfig{
			SchedulePace:    v.GetDuration("apply.schedule_pace"),
			ScheduleSettle:  v.GetDuration("apply.schedule_settle"),
			BreakdownPace:   v.GetDuration("apply.breakdown_pace"),
			BreakdownSettle: v.GetDuration("apply.breakdown_settle"),
		},
		Debounce:  v.GetDuration("breakdown.debounce"),
		EnableBot: enableBot,
	}

	if _, err := llm.ValidateProvider(cfg.LLM.Provider); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.EnableBot && cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("%s_TELEGRAM_TOKEN is required when the bot is enabled", EnvPrefix)
	}
	if cfg.LLM.Provider != "ollama" && cfg.LLM.APIKey == "" {
		slog.Warn("llm api key is empty, AI features will use fallbacks", "provider", cfg.LLM.Provider)
	}

	return cfg, nil
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
