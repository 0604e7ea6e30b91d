package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxPostLength = 280
	DefaultMaxAttempts   = 3
	DefaultTimeout       = 30 * time.Second
	DefaultThreshold     = 0.8
	DefaultWindow        = 30
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultSchedule      = "0 */4 * * *"
)

// ConfigurationError reports a missing or invalid setting. A cycle never runs
// with a configuration that produced one.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type AISettings struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

type PlatformSettings struct {
	Kind         string        `yaml:"kind"`
	Session      string        `yaml:"session"`
	Headless     bool          `yaml:"headless"`
	TokenCache   string        `yaml:"token_cache"`
	LoginTimeout time.Duration `yaml:"login_timeout"`
	DiscordName  string        `yaml:"discord_username"`
}

type GenerationSettings struct {
	MaxPostLength int           `yaml:"max_post_length"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SimilaritySettings struct {
	Threshold float64 `yaml:"threshold"`
	Window    int     `yaml:"window"`
}

type SelectorSettings struct {
	Policy string              `yaml:"policy"`
	Seed   int64               `yaml:"seed"`
	Topics map[string][]string `yaml:"topics"`
}

type PersonaSettings struct {
	Path          string `yaml:"path"`
	PostsPerPhase int    `yaml:"posts_per_phase"`
}

type StorageSettings struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
}

type Config struct {
	AI         AISettings         `yaml:"ai"`
	Platform   PlatformSettings   `yaml:"platform"`
	Generation GenerationSettings `yaml:"generation"`
	Similarity SimilaritySettings `yaml:"similarity"`
	Selector   SelectorSettings   `yaml:"selector"`
	Persona    PersonaSettings    `yaml:"persona"`
	Storage    StorageSettings    `yaml:"storage"`
	Schedule   struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Metrics struct {
		ListenAddr     string `yaml:"listen_addr"`
		PushgatewayURL string `yaml:"pushgateway_url"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"log"`
}

// Secrets are read from the environment (optionally seeded from a .env file).
type Secrets struct {
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	ConsumerKey       string `envconfig:"CONSUMER_KEY"`
	ConsumerSecret    string `envconfig:"CONSUMER_SECRET"`
	AccessToken       string `envconfig:"ACCESS_TOKEN"`
	AccessTokenSecret string `envconfig:"ACCESS_TOKEN_SECRET"`
	TwitterUsername   string `envconfig:"TWITTER_USERNAME"`
	TwitterPassword   string `envconfig:"TWITTER_PASSWORD"`
	TwitterEmail      string `envconfig:"TWITTER_EMAIL"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
	SurrealHost       string `envconfig:"SURREAL_DB_HOST"`
	SurrealUser       string `envconfig:"SURREAL_DB_USER"`
	SurrealPass       string `envconfig:"SURREAL_DB_PASS"`
	SurrealNamespace  string `envconfig:"SURREAL_DB_NAMESPACE" default:"riley"`
	SurrealDatabase   string `envconfig:"SURREAL_DB_DATABASE" default:"posts"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.AI.Provider = "gemini"
	cfg.AI.Temperature = 1
	cfg.AI.TopP = 0.95
	cfg.Platform.Kind = "twitter"
	cfg.Platform.Session = "static"
	cfg.Platform.Headless = true
	cfg.Platform.TokenCache = ".riley_tokens.json"
	cfg.Platform.LoginTimeout = 3 * time.Minute
	cfg.Platform.DiscordName = "Riley"
	cfg.Generation.MaxPostLength = DefaultMaxPostLength
	cfg.Generation.MaxAttempts = DefaultMaxAttempts
	cfg.Generation.Timeout = DefaultTimeout
	cfg.Similarity.Threshold = DefaultThreshold
	cfg.Similarity.Window = DefaultWindow
	cfg.Selector.Policy = "rotate"
	cfg.Persona.Path = "persona.yml"
	cfg.Storage.Backend = "file"
	cfg.Storage.Path = "data/posts.jsonl"
	cfg.Schedule.Cron = DefaultSchedule
	cfg.Log.Level = "info"
	cfg.Log.Dir = "logs"
	return cfg
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		config.fillModel()
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	config.fillModel()
	return config, nil
}

func (c *Config) fillModel() {
	if c.AI.Model != "" {
		return
	}
	switch c.AI.Provider {
	case "openai":
		c.AI.Model = DefaultOpenAIModel
	default:
		c.AI.Model = DefaultGeminiModel
	}
}

// LoadSecrets loads envFile when present and then reads the environment.
func LoadSecrets(envFile string) (*Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Debug().Str("file", envFile).Msg("No .env file found, relying on environment variables")
		}
	}

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &s, nil
}

// Validate checks every recognized option once at startup and returns the
// first problem as a *ConfigurationError.
func (c *Config) Validate(s *Secrets) error {
	if s == nil {
		s = &Secrets{}
	}

	switch c.AI.Provider {
	case "gemini":
		if s.GeminiAPIKey == "" {
			return missing("GEMINI_API_KEY")
		}
	case "openai":
		if s.OpenAIAPIKey == "" {
			return missing("OPENAI_API_KEY")
		}
	default:
		return invalid("ai.provider", "unknown provider %q", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return invalid("ai.model", "must not be empty")
	}

	switch c.Platform.Kind {
	case "twitter":
		if s.ConsumerKey == "" {
			return missing("CONSUMER_KEY")
		}
		if s.ConsumerSecret == "" {
			return missing("CONSUMER_SECRET")
		}
		switch c.Platform.Session {
		case "static":
			if s.AccessToken == "" {
				return missing("ACCESS_TOKEN")
			}
			if s.AccessTokenSecret == "" {
				return missing("ACCESS_TOKEN_SECRET")
			}
		case "browser":
			if s.TwitterUsername == "" {
				return missing("TWITTER_USERNAME")
			}
			if s.TwitterPassword == "" {
				return missing("TWITTER_PASSWORD")
			}
		case "prompt":
		default:
			return invalid("platform.session", "unknown session provider %q", c.Platform.Session)
		}
	case "discord":
		if s.DiscordWebhookURL == "" {
			return missing("DISCORD_WEBHOOK_URL")
		}
	default:
		return invalid("platform.kind", "unknown platform %q", c.Platform.Kind)
	}

	if c.Generation.MaxPostLength < 1 {
		return invalid("generation.max_post_length", "must be at least 1, got %d", c.Generation.MaxPostLength)
	}
	if c.Generation.MaxAttempts < 1 {
		return invalid("generation.max_attempts", "must be at least 1, got %d", c.Generation.MaxAttempts)
	}
	if c.Generation.Timeout <= 0 {
		return invalid("generation.timeout", "must be positive, got %s", c.Generation.Timeout)
	}
	if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1 {
		return invalid("similarity.threshold", "must be in (0, 1], got %v", c.Similarity.Threshold)
	}
	if c.Similarity.Window < 1 {
		return invalid("similarity.window", "must be at least 1, got %d", c.Similarity.Window)
	}

	switch c.Selector.Policy {
	case "rotate", "random":
	default:
		return invalid("selector.policy", "unknown policy %q", c.Selector.Policy)
	}
	if c.Selector.Topics != nil && len(c.Selector.Topics) == 0 {
		return invalid("selector.topics", "topic universe is empty")
	}

	if c.Persona.Path == "" {
		return invalid("persona.path", "must not be empty")
	}
	if c.Persona.PostsPerPhase < 0 {
		return invalid("persona.posts_per_phase", "must not be negative, got %d", c.Persona.PostsPerPhase)
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return invalid("storage.path", "required for the %s backend", c.Storage.Backend)
		}
	case "surreal":
		if s.SurrealHost == "" {
			return missing("SURREAL_DB_HOST")
		}
		if s.SurrealUser == "" {
			return missing("SURREAL_DB_USER")
		}
		if s.SurrealPass == "" {
			return missing("SURREAL_DB_PASS")
		}
	default:
		return invalid("storage.backend", "unknown backend %q", c.Storage.Backend)
	}

	return nil
}

func missing(name string) error {
	return &ConfigurationError{Field: name, Reason: "missing required environment variable"}
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
