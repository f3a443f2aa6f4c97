// Package config loads the image drop server configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (IMAGEDROP_*, e.g. IMAGEDROP_STORE_TYPE)
//  2. Configuration file (YAML), when a path is given
//  3. Defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for every key.
const EnvPrefix = "IMAGEDROP"

// Config is the complete server configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Public  PublicConfig  `mapstructure:"public"`
	Store   StoreConfig   `mapstructure:"store"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// MaxUploadBytes caps the request body of POST /upload. 0 disables the cap.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gte=0"`
	MaxBatch       int   `mapstructure:"max_batch" validate:"gte=1,lte=100"`

	// UploadRate uploads are allowed per client IP per UploadWindow. 0 disables limiting.
	UploadRate   int           `mapstructure:"upload_rate" validate:"gte=0"`
	UploadWindow time.Duration `mapstructure:"upload_window" validate:"gt=0"`

	// TrustProxyHeaders keys the upload limiter on X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PublicConfig controls the host and port baked into public addresses.
type PublicConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"gte=1,lte=65535"`

	// FromRequest derives host:port from the request Host header instead.
	FromRequest bool `mapstructure:"from_request"`
}

// StoreConfig selects the content store backend.
type StoreConfig struct {
	Type       string           `mapstructure:"type" validate:"required,oneof=filesystem minio badger"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Minio      MinioConfig      `mapstructure:"minio"`
	Badger     BadgerConfig     `mapstructure:"badger"`
}

type FilesystemConfig struct {
	Dir string `mapstructure:"dir"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

type BadgerConfig struct {
	Dir string `mapstructure:"dir"`
}

// CatalogConfig enables the Postgres record of stored files.
type CatalogConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DatabaseURL string `mapstructure:"database_url"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(100<<20))
	v.SetDefault("server.max_batch", 10)
	v.SetDefault("server.upload_rate", 60)
	v.SetDefault("server.upload_window", time.Minute)
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("public.host", "127.0.0.1")
	v.SetDefault("public.port", 5000)
	v.SetDefault("public.from_request", false)

	v.SetDefault("store.type", "filesystem")
	v.SetDefault("store.filesystem.dir", "uploads")
	v.SetDefault("store.minio.endpoint", "")
	v.SetDefault("store.minio.access_key", "")
	v.SetDefault("store.minio.secret_key", "")
	v.SetDefault("store.minio.bucket", "")
	v.SetDefault("store.minio.prefix", "uploads")
	v.SetDefault("store.badger.dir", "data/badger")

	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.database_url", "")

	v.SetDefault("metrics.enabled", true)
}

// Load reads configPath (optional), applies environment overrides and
// defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Every key has a default, so AutomaticEnv sees all of them on Unmarshal.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
