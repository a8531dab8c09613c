// Package config loads server and CLI settings from defaults, an optional
// YAML file and KATALOG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "KATALOG"

type S3 struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Export struct {
	Passphrase    string
	Interval      time.Duration
	RetentionDays int
}

type Push struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type Config struct {
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	BaseURL        string
	SessionTTL     time.Duration
	AllowedOrigins []string
	LoginRateLimit int

	S3     S3
	Export Export
	Push   Push
}

// New returns a viper instance with defaults and environment binding set
// up. Keys are dotted; s3.bucket is read from KATALOG_S3_BUCKET.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "katalog.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("session_ttl", 30*24*time.Hour)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("login_rate_limit", 10)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")

	v.SetDefault("export.passphrase", "")
	v.SetDefault("export.interval", time.Duration(0))
	v.SetDefault("export.retention_days", 30)

	v.SetDefault("vapid.public_key", "")
	v.SetDefault("vapid.private_key", "")
	v.SetDefault("vapid.subscriber", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML config file into v. An empty path looks for
// katalog.yaml in the working directory and ignores it when absent.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("katalog")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load reads the settings out of v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString("port"),
		DBPath:         v.GetString("db_path"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		BaseURL:        strings.TrimRight(v.GetString("base_url"), "/"),
		SessionTTL:     v.GetDuration("session_ttl"),
		AllowedOrigins: splitList(v.GetStringSlice("allowed_origins")),
		LoginRateLimit: v.GetInt("login_rate_limit"),
		S3: S3{
			Endpoint:  v.GetString("s3.endpoint"),
			Bucket:    v.GetString("s3.bucket"),
			Region:    v.GetString("s3.region"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
		},
		Export: Export{
			Passphrase:    v.GetString("export.passphrase"),
			Interval:      v.GetDuration("export.interval"),
			RetentionDays: v.GetInt("export.retention_days"),
		},
		Push: Push{
			VAPIDPublicKey:  v.GetString("vapid.public_key"),
			VAPIDPrivateKey: v.GetString("vapid.private_key"),
			Subscriber:      v.GetString("vapid.subscriber"),
		},
	}

	if cfg.Port == "" {
		return nil, errors.New("port is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("db_path is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session_ttl must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.LoginRateLimit <= 0 {
		return nil, fmt.Errorf("login_rate_limit must be positive, got %d", cfg.LoginRateLimit)
	}
	if cfg.Export.Interval < 0 {
		return nil, fmt.Errorf("export.interval must not be negative, got %s", cfg.Export.Interval)
	}
	if (cfg.Push.VAPIDPublicKey == "") != (cfg.Push.VAPIDPrivateKey == "") {
		return nil, errors.New("vapid.public_key and vapid.private_key must be set together")
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
