// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every service component.
//
// Configuration Philosophy:
// - One struct, resolved once at startup, passed explicitly to constructors
// - Defaults that run locally without external services (memory ledger, no AI key)
// - Validation catches misconfigurations before the listener opens
package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Limiter backend constants
const (
	LimiterBackendMemory = "memory"
	LimiterBackendRedis  = "redis"
)

// EnvironmentProduction disables developer-only switches such as the usage bypass.
const EnvironmentProduction = "production"

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP listener, timeouts, client IP trust
// - Storage: report store and usage ledger backend
// - Security: burst throttle and admin shared secret
// - Usage: gating policy knobs
// - AnalysisLimit: per-IP window limiter protecting the LLM analysis call
// - AI, Email, CRM: external collaborators
// - Logging, Metrics, Observability: ambient operations
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Usage         UsageConfig         `yaml:"usage" json:"usage"`
	AnalysisLimit AnalysisLimitConfig `yaml:"analysis_limit" json:"analysis_limit"`
	AI            AIConfig            `yaml:"ai" json:"ai"`
	Email         EmailConfig         `yaml:"email" json:"email"`
	CRM           CRMConfig           `yaml:"crm" json:"crm"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	Host            string        `yaml:"host" json:"host"`
	Environment     string        `yaml:"environment" json:"environment"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled      bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile     string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file" json:"tls_key_file"`
	TrustRemoteAddr bool          `yaml:"trust_remote_addr" json:"trust_remote_addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	CORS            CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type SecurityConfig struct {
	// AdminSecret guards the usage reset endpoint. Empty disables it.
	AdminSecret string          `yaml:"admin_secret" json:"-"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures the token-bucket burst throttle applied to every API route.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type UsageConfig struct {
	// FreeUses is the number of optimizations an identity gets before it is locked.
	FreeUses int `yaml:"free_uses" json:"free_uses"`
	// BypassLimit disables the lock. Development only.
	BypassLimit bool `yaml:"bypass_limit" json:"bypass_limit"`
}

// AnalysisLimitConfig configures the fixed-window per-IP limiter in front of analysis.
type AnalysisLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	MaxRequests     int           `yaml:"max_requests" json:"max_requests"`
	Window          time.Duration `yaml:"window" json:"window"`
	Backend         string        `yaml:"backend" json:"backend"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type AIConfig struct {
	Provider          string               `yaml:"provider" json:"provider"`
	APIKey            string               `yaml:"api_key" json:"-"`
	AnalysisModel     string               `yaml:"analysis_model" json:"analysis_model"`
	OptimizationModel string               `yaml:"optimization_model" json:"optimization_model"`
	Temperature       float32              `yaml:"temperature" json:"temperature"`
	Timeout           time.Duration        `yaml:"timeout" json:"timeout"`
	MaxRetries        int                  `yaml:"max_retries" json:"max_retries"`
	MaxInputChars     int                  `yaml:"max_input_chars" json:"max_input_chars"`
	CircuitBreaker    CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests"`
	Interval         time.Duration `yaml:"interval" json:"interval"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	MinRequests      uint32        `yaml:"min_requests" json:"min_requests"`
	FailureThreshold float64       `yaml:"failure_threshold" json:"failure_threshold"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	From     string `yaml:"from" json:"from"`
	SiteURL  string `yaml:"site_url" json:"site_url"`
	DemoURL  string `yaml:"demo_url" json:"demo_url"`
}

type CRMConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	AccessToken string        `yaml:"access_token" json:"-"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration that runs locally out of the box.
//
// Default Values Rationale:
// - Memory ledger: no database needed for a first run
// - 5 analyses per IP per 24h and 2 free optimizations: the funnel's economics
// - Email and CRM disabled until credentials are supplied
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			Environment:  "development",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Fingerprint"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				BurstSize:         20,
				CleanupInterval:   5 * time.Minute,
			},
		},
		Usage: UsageConfig{
			FreeUses: 2,
		},
		AnalysisLimit: AnalysisLimitConfig{
			Enabled:         true,
			MaxRequests:     5,
			Window:          24 * time.Hour,
			Backend:         LimiterBackendMemory,
			CleanupInterval: time.Hour,
			Redis: RedisConfig{
				KeyPrefix: "leadgate:analysis:",
			},
		},
		AI: AIConfig{
			Provider:          "gemini",
			AnalysisModel:     "gemini-2.5-pro",
			OptimizationModel: "gemini-2.5-flash",
			Temperature:       0.4,
			Timeout:           60 * time.Second,
			MaxRetries:        2,
			MaxInputChars:     20000,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				MaxRequests:      3,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
				MinRequests:      5,
				FailureThreshold: 0.6,
			},
		},
		Email: EmailConfig{
			Port:    587,
			SiteURL: "http://localhost:8080",
		},
		CRM: CRMConfig{
			BaseURL: "https://api.hubapi.com",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "leadgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Usage.Validate(); err != nil {
		return fmt.Errorf("invalid usage config: %w", err)
	}

	if c.Usage.BypassLimit && c.Server.Environment == EnvironmentProduction {
		return errors.New("invalid usage config: bypass_limit cannot be enabled in production")
	}

	if err := c.AnalysisLimit.Validate(); err != nil {
		return fmt.Errorf("invalid analysis limit config: %w", err)
	}

	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("invalid ai config: %w", err)
	}

	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("invalid email config: %w", err)
	}

	if err := c.CRM.Validate(); err != nil {
		return fmt.Errorf("invalid crm config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	validTypes := []string{StorageTypeMemory, StorageTypePostgres, StorageTypeSQLite}
	if !slices.Contains(validTypes, stc.Type) {
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	if stc.Type != StorageTypeMemory && stc.Database.DSN == "" {
		return errors.New("database DSN is required for database storage")
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if sec.RateLimit.Enabled {
		if sec.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("requests per minute must be positive")
		}
		if sec.RateLimit.BurstSize <= 0 {
			return errors.New("burst size must be positive")
		}
		if sec.RateLimit.CleanupInterval <= 0 {
			return errors.New("cleanup interval must be positive")
		}
	}
	return nil
}

func (uc *UsageConfig) Validate() error {
	if uc.FreeUses < 1 {
		return errors.New("free uses must be at least 1")
	}
	return nil
}

func (al *AnalysisLimitConfig) Validate() error {
	if !al.Enabled {
		return nil
	}

	if al.MaxRequests <= 0 {
		return errors.New("max requests must be positive")
	}

	if al.Window <= 0 {
		return errors.New("window must be positive")
	}

	switch al.Backend {
	case LimiterBackendMemory:
		if al.CleanupInterval <= 0 {
			return errors.New("cleanup interval must be positive")
		}
	case LimiterBackendRedis:
		if al.Redis.Addr == "" {
			return errors.New("redis address is required when backend is redis")
		}
	default:
		return fmt.Errorf("invalid limiter backend: %s", al.Backend)
	}

	return nil
}

func (ac *AIConfig) Validate() error {
	if ac.Provider != "gemini" {
		return fmt.Errorf("unsupported ai provider: %s", ac.Provider)
	}

	if ac.AnalysisModel == "" || ac.OptimizationModel == "" {
		return errors.New("analysis and optimization models are required")
	}

	if ac.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if ac.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}

	if ac.MaxInputChars <= 0 {
		return errors.New("max input chars must be positive")
	}

	if ac.CircuitBreaker.Enabled {
		if ac.CircuitBreaker.FailureThreshold <= 0 || ac.CircuitBreaker.FailureThreshold > 1 {
			return errors.New("circuit breaker failure threshold must be in (0, 1]")
		}
	}

	return nil
}

func (ec *EmailConfig) Validate() error {
	if !ec.Enabled {
		return nil
	}

	if ec.Host == "" {
		return errors.New("smtp host is required when email is enabled")
	}

	if ec.Port <= 0 || ec.Port > 65535 {
		return errors.New("smtp port must be between 1 and 65535")
	}

	if ec.From == "" {
		return errors.New("from address is required when email is enabled")
	}

	return nil
}

func (cc *CRMConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	if cc.AccessToken == "" {
		return errors.New("access token is required when crm is enabled")
	}

	if cc.BaseURL == "" {
		return errors.New("base url is required when crm is enabled")
	}

	if cc.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}
