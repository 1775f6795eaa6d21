package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/upb/qna-gateway/services/providers"
	"github.com/upb/qna-gateway/services/routing"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Providers     ProvidersConfig
	Router        RouterSettings
	Observability ObservabilityConfig
	Environment   string
	OverridesFile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the audit trail.
// An empty ConnectionString disables the audit trail.
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds the shared cooldown store. An empty URL keeps cooldowns in memory.
type RedisConfig struct {
	URL      string
	Password string
}

// AuthConfig holds bearer token settings for the API
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ProviderSettings holds the settings of one upstream provider
type ProviderSettings struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ProvidersConfig holds upstream provider configuration
type ProvidersConfig struct {
	Groq           ProviderSettings
	Gemini         ProviderSettings
	ConnectTimeout time.Duration
	AttemptTimeout time.Duration
}

// RouterSettings holds the raw routing policy as read from the environment
type RouterSettings struct {
	Order         string
	Forced        string
	Strict        bool
	DisableGroq   bool
	DisableGemini bool
	Cooldown      time.Duration
	ForceFail     string
}

// ObservabilityConfig holds logging and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Load()

	if cfg.OverridesFile != "" {
		if err := cfg.ApplyOverridesFile(cfg.OverridesFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads the configuration from the process environment without validating it
func Load() *Config {
	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		OverridesFile: getEnv("QNA_OVERRIDES_FILE", ""),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 45*time.Second),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("API_JWT_SECRET", ""),
			Issuer:    getEnv("API_JWT_ISSUER", ""),
		},
		Providers: ProvidersConfig{
			Groq: ProviderSettings{
				APIKey:  getEnv("GROQ_API_KEY", ""),
				BaseURL: getEnv("GROQ_API_BASE", ""),
				Model:   getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
			},
			Gemini: ProviderSettings{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_API_BASE", ""),
				Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
			},
			ConnectTimeout: getEnvAsDuration("QNA_CONNECT_TIMEOUT", 8*time.Second),
			AttemptTimeout: getEnvAsDuration("QNA_ATTEMPT_TIMEOUT", 15*time.Second),
		},
		Router: RouterSettings{
			Order:         getEnvAny([]string{"QNA_PROVIDER_ORDER", "QNA_PROVIDER_PRIORITY", "LLM_PROVIDER_ORDER"}, "groq,gemini"),
			Forced:        strings.ToLower(strings.TrimSpace(getEnv("QNA_FORCE_PROVIDER", ""))),
			Strict:        getEnvAsFlag("QNA_STRICT_FORCE"),
			DisableGroq:   getEnvAsFlag("GROQ_FORCE_DISABLE"),
			DisableGemini: getEnvAsFlag("GEMINI_FORCE_DISABLE"),
			Cooldown:      time.Duration(getEnvAnyAsInt([]string{"QNA_COOLDOWN_SEC", "QNA_PROVIDER_COOLDOWN_SEC"}, 120)) * time.Second,
			ForceFail:     strings.ToLower(strings.TrimSpace(getEnvAny([]string{"QNA_FORCE_FAIL", "QNA_QUOTA_TEST_FORCE_EXHAUST"}, ""))),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}
}

// Validate checks the configuration for values the router cannot work with
func (c *Config) Validate() error {
	if c.Router.Forced != "" {
		if _, err := providers.ParseProviderID(c.Router.Forced); err != nil {
			return fmt.Errorf("QNA_FORCE_PROVIDER: %w", err)
		}
	}
	if c.Router.ForceFail != "" {
		if _, err := providers.ParseProviderID(c.Router.ForceFail); err != nil {
			return fmt.Errorf("QNA_FORCE_FAIL: %w", err)
		}
	}
	if c.Router.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Router.Cooldown)
	}
	if c.Providers.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be positive, got %s", c.Providers.AttemptTimeout)
	}

	if c.IsProduction() {
		if c.Providers.Groq.APIKey == "" && c.Providers.Gemini.APIKey == "" {
			return fmt.Errorf("at least one answer provider must be configured in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// RouterConfig builds the immutable routing policy
func (c *Config) RouterConfig() routing.RouterConfig {
	rc := routing.DefaultRouterConfig()
	if order := routing.ParseOrder(c.Router.Order); len(order) > 0 {
		rc.Order = order
	}
	rc.Forced = providers.ProviderID(c.Router.Forced)
	rc.Strict = c.Router.Strict
	rc.Disabled[providers.Groq] = c.Router.DisableGroq
	rc.Disabled[providers.Gemini] = c.Router.DisableGemini
	rc.Cooldown = c.Router.Cooldown
	rc.AttemptTimeout = c.Providers.AttemptTimeout
	return rc
}

// ProviderConfigs builds the static adapter settings keyed by provider
func (c *Config) ProviderConfigs() map[providers.ProviderID]providers.ProviderConfig {
	build := func(s ProviderSettings) providers.ProviderConfig {
		pc := providers.DefaultProviderConfig()
		pc.APIKey = s.APIKey
		pc.BaseURL = s.BaseURL
		pc.Model = s.Model
		pc.ConnectTimeout = c.Providers.ConnectTimeout
		pc.Timeout = c.Providers.AttemptTimeout
		return pc
	}

	return map[providers.ProviderID]providers.ProviderConfig{
		providers.Groq:   build(c.Providers.Groq),
		providers.Gemini: build(c.Providers.Gemini),
	}
}

// Overrides is the YAML document accepted by ApplyOverridesFile
type Overrides struct {
	Router struct {
		Order           []string `yaml:"order"`
		Forced          *string  `yaml:"forced"`
		Strict          *bool    `yaml:"strict"`
		Disabled        []string `yaml:"disabled"`
		CooldownSeconds *int     `yaml:"cooldown_seconds"`
	} `yaml:"router"`
	Models map[string]string `yaml:"models"`
}

// ApplyOverridesFile reads a YAML overrides document and applies it on top of the environment
func (c *Config) ApplyOverridesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read overrides file: %w", err)
	}
	return c.ApplyOverrides(data)
}

// ApplyOverrides applies a YAML overrides document
func (c *Config) ApplyOverrides(data []byte) error {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("failed to parse overrides: %w", err)
	}

	r := o.Router
	if len(r.Order) > 0 {
		c.Router.Order = strings.Join(r.Order, ",")
	}
	if r.Forced != nil {
		c.Router.Forced = strings.ToLower(strings.TrimSpace(*r.Forced))
	}
	if r.Strict != nil {
		c.Router.Strict = *r.Strict
	}
	if r.Disabled != nil {
		c.Router.DisableGroq = false
		c.Router.DisableGemini = false
		for _, raw := range r.Disabled {
			id, err := providers.ParseProviderID(raw)
			if err != nil {
				return fmt.Errorf("overrides router.disabled: %w", err)
			}
			switch id {
			case providers.Groq:
				c.Router.DisableGroq = true
			case providers.Gemini:
				c.Router.DisableGemini = true
			}
		}
	}
	if r.CooldownSeconds != nil {
		c.Router.Cooldown = time.Duration(*r.CooldownSeconds) * time.Second
	}

	for raw, model := range o.Models {
		id, err := providers.ParseProviderID(raw)
		if err != nil {
			return fmt.Errorf("overrides models: %w", err)
		}
		switch id {
		case providers.Groq:
			c.Providers.Groq.Model = model
		case providers.Gemini:
			c.Providers.Gemini.Model = model
		}
	}

	return nil
}

// Enabled reports whether the audit database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != ""
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAny returns the first non-empty value among keys
func getEnvAny(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAnyAsInt(keys []string, defaultValue int) int {
	valueStr := getEnvAny(keys, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFlag treats 1, true, yes, on, y and t as set, case-insensitively
func getEnvAsFlag(key string) bool {
	return IsTruthy(os.Getenv(key))
}

// IsTruthy reports whether s is one of the accepted "on" spellings
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	default:
		return false
	}
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
