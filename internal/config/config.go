package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	EmergencyRateLimitRPS   float64 `mapstructure:"EMERGENCY_RATE_LIMIT_RPS"`
	EmergencyRateLimitBurst int     `mapstructure:"EMERGENCY_RATE_LIMIT_BURST"`
	// EmergencyAuditStrict makes a failed access-log write fail the scan.
	EmergencyAuditStrict bool `mapstructure:"EMERGENCY_AUDIT_STRICT"`

	SearchHistoryRetain int `mapstructure:"SEARCH_HISTORY_RETAIN"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "CORS_ORIGINS", "TRUSTED_PROXIES",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"AMQP_URL", "AMQP_EXCHANGE",
	"EMERGENCY_RATE_LIMIT_RPS", "EMERGENCY_RATE_LIMIT_BURST", "EMERGENCY_AUDIT_STRICT",
	"SEARCH_HISTORY_RETAIN",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)
	v.SetDefault("MINIO_BUCKET", "patient-documents")
	v.SetDefault("AMQP_EXCHANGE", "emergency.access")
	v.SetDefault("EMERGENCY_RATE_LIMIT_RPS", 1)
	v.SetDefault("EMERGENCY_RATE_LIMIT_BURST", 5)
	v.SetDefault("EMERGENCY_AUDIT_STRICT", false)
	v.SetDefault("SEARCH_HISTORY_RETAIN", 50)

	// Unmarshal only sees keys viper already knows about.
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if len(cfg.TrustedProxies) == 1 {
		cfg.TrustedProxies = strings.Split(cfg.TrustedProxies[0], ",")
		if cfg.TrustedProxies[0] == "" {
			cfg.TrustedProxies = nil
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MinioEnabled reports whether document content goes to MinIO instead of
// process memory.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a token signing key is mandatory, since dev auth trusts request headers.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.IsProduction() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes in production")
	}
	if c.MinioEnabled() && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}
	if c.EmergencyRateLimitRPS <= 0 || c.EmergencyRateLimitBurst <= 0 {
		return fmt.Errorf("EMERGENCY_RATE_LIMIT_RPS and EMERGENCY_RATE_LIMIT_BURST must be positive")
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
	}
	if c.SearchHistoryRetain < 5 {
		return fmt.Errorf("SEARCH_HISTORY_RETAIN must keep at least 5 patients, got %d", c.SearchHistoryRetain)
	}
	return nil
}
