package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string          `yaml:"discord_token"`
	SettingsPath  string          `yaml:"settings_path"`
	DMLogPath     string          `yaml:"dm_log_path"`
	DatabasePath  string          `yaml:"database_path"`
	LogLevel      string          `yaml:"log_level"`
	CommandPrefix string          `yaml:"command_prefix"`
	RetentionDays int             `yaml:"retention_days"`
	Generator     GeneratorConfig `yaml:"generator"`
	Dashboard     DashboardConfig `yaml:"dashboard"`
	Health        HealthConfig    `yaml:"health"`
}

type GeneratorConfig struct {
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
}

type DashboardConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

func DefaultConfig() Config {
	return Config{
		SettingsPath:  "settings.json",
		DMLogPath:     "dms.json",
		DatabasePath:  "guildkeeper.db",
		LogLevel:      "info",
		CommandPrefix: "!",
		RetentionDays: 30,
		Generator: GeneratorConfig{
			Provider:       ProviderGemini,
			Model:          "gemini-1.5-flash",
			TimeoutSeconds: 30,
		},
		Dashboard: DashboardConfig{Addr: ":3000", StaticDir: "public"},
		Health:    HealthConfig{Enabled: false, Addr: ":8080"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.Generator.Provider = normalizeProvider(cfg.Generator.Provider)
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}
	return cfg, nil
}

func (c Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}
	return nil
}

func (g GeneratorConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.SettingsPath = envString("SETTINGS_PATH", cfg.SettingsPath)
	cfg.DMLogPath = envString("DM_LOG_PATH", cfg.DMLogPath)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.CommandPrefix = envString("COMMAND_PREFIX", cfg.CommandPrefix)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Generator.Provider = envString("GENERATOR_PROVIDER", cfg.Generator.Provider)
	cfg.Generator.Model = envString("GENERATOR_MODEL", cfg.Generator.Model)
	cfg.Generator.BaseURL = envString("GENERATOR_BASE_URL", cfg.Generator.BaseURL)
	cfg.Generator.TimeoutSeconds = envInt("GENERATOR_TIMEOUT_SECONDS", cfg.Generator.TimeoutSeconds)
	cfg.Generator.MaxConcurrent = envInt("GENERATOR_MAX_CONCURRENT", cfg.Generator.MaxConcurrent)
	switch normalizeProvider(cfg.Generator.Provider) {
	case ProviderOpenAI:
		cfg.Generator.APIKey = envString("OPENAI_API_KEY", cfg.Generator.APIKey)
	default:
		cfg.Generator.APIKey = envString("GEMINI_API_KEY", cfg.Generator.APIKey)
	}
	cfg.Generator.APIKey = envString("GENERATOR_API_KEY", cfg.Generator.APIKey)
	cfg.Dashboard.Addr = envString("DASHBOARD_ADDR", cfg.Dashboard.Addr)
	cfg.Dashboard.StaticDir = envString("DASHBOARD_STATIC_DIR", cfg.Dashboard.StaticDir)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func normalizeProvider(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ProviderOpenAI:
		return ProviderOpenAI
	default:
		return ProviderGemini
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
