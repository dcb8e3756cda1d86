package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Activation ActivationConfig `mapstructure:"activation"`
	Sharing    SharingConfig    `mapstructure:"sharing"`
	Security   SecurityConfig   `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ActivationConfig holds emergency-activation policy settings.
// Grant durations are deployment policy, not code constants.
type ActivationConfig struct {
	// VerificationWindow is how long a one-time code stays valid,
	// measured from request creation.
	VerificationWindow time.Duration `mapstructure:"verification_window"`
	// CodeLength is the number of characters in a verification code.
	CodeLength int `mapstructure:"code_length"`
	// Grants maps activation type to the access duration granted on
	// successful verification.
	Grants map[string]time.Duration `mapstructure:"grants"`
	// SweepInterval is how often the server runs the expiry sweep.
	// Zero disables the built-in ticker (an external scheduler may
	// drive POST /api/emergency/access/cleanup instead).
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// GrantDuration returns the configured grant duration for an activation
// type, falling back to 24h for unknown or unconfigured types.
func (c ActivationConfig) GrantDuration(activationType string) time.Duration {
	if d, ok := c.Grants[activationType]; ok && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// SharingConfig holds emergency-sharing token settings
type SharingConfig struct {
	// MaxUses is the number of times a sharing token may be redeemed.
	MaxUses int `mapstructure:"max_uses"`
	// GrantTokenTTL is the lifetime of the signed grant returned by a
	// successful token validation.
	GrantTokenTTL time.Duration `mapstructure:"grant_token_ttl"`
	// GrantSigningSecret signs grant tokens. Must be set in production.
	GrantSigningSecret string `mapstructure:"grant_signing_secret"`
	// Issuer is the iss claim on grant tokens.
	Issuer string `mapstructure:"issuer"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DefaultLimit  int    `mapstructure:"default_limit"`
	DefaultWindow string `mapstructure:"default_window"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ifimgone")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("IFIMGONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ifimgone")
	v.SetDefault("database.user", "ifimgone")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Activation defaults. Grant durations come from product policy;
	// every deployment is expected to review these.
	v.SetDefault("activation.verification_window", "5m")
	v.SetDefault("activation.code_length", 6)
	v.SetDefault("activation.grants.panic_button", "24h")
	v.SetDefault("activation.grants.sms_code", "24h")
	v.SetDefault("activation.grants.trusted_contact", "72h")
	v.SetDefault("activation.grants.medical_professional", "72h")
	v.SetDefault("activation.grants.legal_representative", "720h")
	v.SetDefault("activation.sweep_interval", "1m")

	// Sharing defaults
	v.SetDefault("sharing.max_uses", 10)
	v.SetDefault("sharing.grant_token_ttl", "15m")
	v.SetDefault("sharing.grant_signing_secret", "")
	v.SetDefault("sharing.issuer", "ifimgone")

	// Security defaults
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.default_limit", 100)
	v.SetDefault("security.rate_limiting.default_window", "1m")
}
