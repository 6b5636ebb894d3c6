package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"leadgate/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEADGATE_"

// DefaultEnvFile is read before environment overrides are applied, when present.
const DefaultEnvFile = ".env"

// Load resolves configuration in order: defaults, YAML file, .env file,
// LEADGATE_* environment variables. The result is validated before it is returned.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	envFile := os.Getenv(EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadDotEnv populates the process environment from an env file. Variables
// already set win over the file. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

// deprecatedConfig mirrors keys from earlier releases so stale operator configs get a warning.
type deprecatedConfig struct {
	Security struct {
		AdminKey string `yaml:"admin_key"`
	} `yaml:"security"`
	Usage struct {
		MaxFreeUses *int `yaml:"max_free_uses"`
	} `yaml:"usage"`
}

// warnDeprecatedKeys logs a warning for each renamed key found in the YAML data.
func warnDeprecatedKeys(data []byte) {
	var dep deprecatedConfig
	if err := yaml.Unmarshal(data, &dep); err != nil {
		return
	}
	if dep.Security.AdminKey != "" {
		slog.Warn("Config key was renamed and is ignored; use security.admin_secret.", "config_key", "security.admin_key")
	}
	if dep.Usage.MaxFreeUses != nil {
		slog.Warn("Config key was renamed and is ignored; use usage.free_uses.", "config_key", "usage.max_free_uses")
	}
}

func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnDeprecatedKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment applies LEADGATE_* overrides. Unparseable values are ignored.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envInt("PORT", &config.Server.Port)
	envString("HOST", &config.Server.Host)
	envString("ENVIRONMENT", &config.Server.Environment)
	envDuration("READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("TLS_ENABLED", &config.Server.TLSEnabled)
	envString("TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("TLS_KEY_FILE", &config.Server.TLSKeyFile)
	envBool("TRUST_REMOTE_ADDR", &config.Server.TrustRemoteAddr)
	envBool("CORS_ENABLED", &config.Server.CORS.Enabled)
	if origins := os.Getenv(EnvPrefix + "CORS_ALLOWED_ORIGINS"); origins != "" {
		config.Server.CORS.AllowedOrigins = splitList(origins)
	}

	// Storage configuration
	envString("STORAGE_TYPE", &config.Storage.Type)
	envString("DATABASE_DSN", &config.Storage.Database.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &config.Storage.Database.MaxIdleConns)

	// Security configuration
	envString("ADMIN_SECRET", &config.Security.AdminSecret)
	envBool("RATE_LIMIT_ENABLED", &config.Security.RateLimit.Enabled)
	envInt("RATE_LIMIT_REQUESTS_PER_MINUTE", &config.Security.RateLimit.RequestsPerMinute)
	envInt("RATE_LIMIT_BURST_SIZE", &config.Security.RateLimit.BurstSize)

	// Usage gating
	envInt("FREE_USES", &config.Usage.FreeUses)
	envBool("BYPASS_LIMIT", &config.Usage.BypassLimit)

	// Analysis limit
	envBool("ANALYSIS_LIMIT_ENABLED", &config.AnalysisLimit.Enabled)
	envInt("ANALYSIS_LIMIT_MAX_REQUESTS", &config.AnalysisLimit.MaxRequests)
	envDuration("ANALYSIS_LIMIT_WINDOW", &config.AnalysisLimit.Window)
	envString("ANALYSIS_LIMIT_BACKEND", &config.AnalysisLimit.Backend)
	envString("REDIS_ADDR", &config.AnalysisLimit.Redis.Addr)
	envString("REDIS_PASSWORD", &config.AnalysisLimit.Redis.Password)
	envInt("REDIS_DB", &config.AnalysisLimit.Redis.DB)

	// AI configuration
	envString("AI_API_KEY", &config.AI.APIKey)
	envString("AI_ANALYSIS_MODEL", &config.AI.AnalysisModel)
	envString("AI_OPTIMIZATION_MODEL", &config.AI.OptimizationModel)
	envDuration("AI_TIMEOUT", &config.AI.Timeout)
	envInt("AI_MAX_RETRIES", &config.AI.MaxRetries)
	envInt("AI_MAX_INPUT_CHARS", &config.AI.MaxInputChars)
	if config.AI.APIKey == "" {
		config.AI.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	// Email configuration
	envBool("EMAIL_ENABLED", &config.Email.Enabled)
	envString("SMTP_HOST", &config.Email.Host)
	envInt("SMTP_PORT", &config.Email.Port)
	envString("SMTP_USERNAME", &config.Email.Username)
	envString("SMTP_PASSWORD", &config.Email.Password)
	envString("EMAIL_FROM", &config.Email.From)
	envString("SITE_URL", &config.Email.SiteURL)
	envString("DEMO_URL", &config.Email.DemoURL)

	// CRM configuration
	envBool("CRM_ENABLED", &config.CRM.Enabled)
	envString("CRM_BASE_URL", &config.CRM.BaseURL)
	envString("CRM_ACCESS_TOKEN", &config.CRM.AccessToken)
	envDuration("CRM_TIMEOUT", &config.CRM.Timeout)

	// Logging configuration
	envString("LOG_LEVEL", &config.Logging.Level)
	envString("LOG_FORMAT", &config.Logging.Format)
	envString("LOG_OUTPUT", &config.Logging.Output)
	envString("LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics configuration
	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("METRICS_PATH", &config.Metrics.Path)
	envInt("METRICS_PORT", &config.Metrics.Port)

	// Tracing configuration
	envBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SaveExample writes an example configuration file with placeholder secrets.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/leadgate.db"
	config.Security.AdminSecret = "change-me"
	config.Email.Host = "smtp.example.com"
	config.Email.From = "Vacancy Analyzer <noreply@example.com>"
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
