package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/pedidos-cli/internal/dataset"
)

// Bounds for narration.max_numbers.
const (
	MinNarrationNumbers = 20
	MaxNarrationNumbers = 200
)

// MaxNarrationTokens caps narration.max_tokens.
const MaxNarrationTokens = 65536

// Config holds the full application configuration.
type Config struct {
	Data       dataset.Files    `yaml:"data" mapstructure:"data"`
	Narration  NarrationConfig  `yaml:"narration" mapstructure:"narration"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// NarrationConfig controls the optional model explanation of answers.
type NarrationConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxNumbers    int     `yaml:"max_numbers" mapstructure:"max_numbers"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerMinute int     `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	TopN          int     `yaml:"top_n" mapstructure:"top_n"`
}

// OpenRouterConfig holds OpenRouter API settings.
type OpenRouterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// StoreConfig configures the history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SessionTTL     time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProviderKey returns the API key configured for the selected provider.
func (c *Config) ProviderKey() string {
	switch strings.ToLower(c.Narration.Provider) {
	case "anthropic":
		return c.Anthropic.Key
	case "gemini":
		return c.Gemini.Key
	default:
		return c.OpenRouter.Key
	}
}

// Validate reports every setting that cannot work for mode ("ask" or
// "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch strings.ToLower(c.Narration.Provider) {
	case "openrouter", "anthropic", "gemini":
	default:
		errs = append(errs, fmt.Sprintf("narration.provider %q is not one of openrouter, anthropic, gemini", c.Narration.Provider))
	}
	if c.Narration.Temperature < 0 || c.Narration.Temperature > 2 {
		errs = append(errs, "narration.temperature must be between 0 and 2")
	}
	if c.Narration.MaxTokens < 0 || c.Narration.MaxTokens > MaxNarrationTokens {
		errs = append(errs, fmt.Sprintf("narration.max_tokens must be between 0 and %d", MaxNarrationTokens))
	}

	switch strings.ToLower(c.Store.Driver) {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of none, sqlite, postgres", c.Store.Driver))
	}

	switch mode {
	case "ask":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.SessionTTL < 0 {
			errs = append(errs, "server.session_ttl must be >= 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ClampMaxNumbers keeps n inside [MinNarrationNumbers, MaxNarrationNumbers].
func ClampMaxNumbers(n int) int {
	switch {
	case n < MinNarrationNumbers:
		return MinNarrationNumbers
	case n > MaxNarrationNumbers:
		return MaxNarrationNumbers
	}
	return n
}

// Load reads .env, the optional config.yaml and the environment.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PEDIDOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional provider variables are honored alongside the prefixed ones.
	for key, envs := range map[string][]string{
		"openrouter.key": {"PEDIDOS_OPENROUTER_KEY", "OPENROUTER_API_KEY"},
		"anthropic.key":  {"PEDIDOS_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
		"gemini.key":     {"PEDIDOS_GEMINI_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	defaults := dataset.DefaultFiles("data")
	v.SetDefault("data.dir", defaults.Dir)
	v.SetDefault("data.clients", defaults.Clients)
	v.SetDefault("data.orders", defaults.Orders)
	v.SetDefault("data.items", defaults.Items)
	v.SetDefault("data.products", defaults.Products)
	v.SetDefault("narration.enabled", false)
	v.SetDefault("narration.provider", "openrouter")
	v.SetDefault("narration.model", "mistralai/mistral-7b-instruct")
	v.SetDefault("narration.max_numbers", 60)
	v.SetDefault("narration.temperature", 0.1)
	v.SetDefault("narration.max_tokens", 1024)
	v.SetDefault("narration.rate_per_minute", 30)
	v.SetDefault("narration.top_n", 5)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Narration.MaxNumbers = ClampMaxNumbers(cfg.Narration.MaxNumbers)

	return &cfg, nil
}

// LoadDotEnv exports the variables in path without overriding ones already
// set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return eris.Wrapf(err, "config: load %s", path)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
