package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting of a research run.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Search    SearchConfig    `mapstructure:"search"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // text or json
}

// LLMConfig points at an OpenAI-compatible Responses API.
type LLMConfig struct {
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AgentConfig struct {
	MaxIters int `mapstructure:"max_iters"`
}

// SearchConfig configures the Brave web search provider.
type SearchConfig struct {
	BraveAPIKey    string        `mapstructure:"brave_api_key"`
	Endpoint       string        `mapstructure:"endpoint"`
	Lang           string        `mapstructure:"lang"`
	DisableProxies bool          `mapstructure:"disable_proxies"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Delay          time.Duration `mapstructure:"delay"`
}

type TelemetryConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// envBindings maps keys to the environment variables that override them,
// in precedence order. Keys not listed still honour DR_<SECTION>_<KEY>.
var envBindings = map[string][]string{
	"llm.model":              {"DR_MODEL", "DR_LLM_MODEL"},
	"llm.api_key":            {"OPENAI_API_KEY", "DR_LLM_API_KEY"},
	"llm.base_url":           {"OPENAI_BASE_URL", "DR_LLM_BASE_URL"},
	"agent.max_iters":        {"DR_MAX_ITERS", "DR_AGENT_MAX_ITERS"},
	"search.brave_api_key":   {"BRAVE_API_KEY", "DR_SEARCH_BRAVE_API_KEY"},
	"search.lang":            {"DR_SEARCH_LANG"},
	"search.disable_proxies": {"DR_DISABLE_PROXIES_FOR_BRAVE", "DR_SEARCH_DISABLE_PROXIES"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "text")

	v.SetDefault("llm.model", "gpt-5")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("agent.max_iters", 5)

	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("search.endpoint", "https://api.search.brave.com/res/v1/web/search")
	v.SetDefault("search.lang", "en")
	v.SetDefault("search.disable_proxies", false)
	v.SetDefault("search.timeout", 20*time.Second)
	v.SetDefault("search.delay", time.Second)

	v.SetDefault("telemetry.metrics_addr", "")
}

// Load reads configuration from path, or from deepresearch.{json,yaml,...}
// in ./config, the working directory or next to the executable when path is
// empty. A missing file is only an error when path is given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("deepresearch")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Search.BraveAPIKey = strings.TrimSpace(c.Search.BraveAPIKey)
	c.General.LogLevel = strings.ToLower(strings.TrimSpace(c.General.LogLevel))
	c.General.LogFormat = strings.ToLower(strings.TrimSpace(c.General.LogFormat))
}

// Validate checks settings that have no usable fallback. A missing search
// key is allowed: searches then return no results.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.General.LogLevel); err != nil {
		return err
	}
	switch c.General.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("general.log_format must be text or json, got %q", c.General.LogFormat)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.Search.Timeout < 0 || c.Search.Delay < 0 {
		return fmt.Errorf("search.timeout and search.delay must not be negative")
	}
	return nil
}

// RequireLLM reports whether a model call can be made with this config.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set OPENAI_API_KEY)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required (set DR_MODEL)")
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func (g GeneralConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(g.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if g.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("general.log_level %q is not one of debug, info, warn, error", s)
	}
}
