package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Render     RenderConfig
	SMTP       SMTPConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Accounting AccountingConfig
	Spool      SpoolConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name           string
	Env            string
	Port           string
	AllowedOrigins []string
}

// LogConfig holds logging configuration. Level and Format default by
// app.env.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// RenderConfig selects and configures the external rendering tools
type RenderConfig struct {
	Backend     string // ghostscript or mupdf
	Soffice     string
	Ghostscript string
	FFmpeg      string
	Timeout     time.Duration
	TempDir     string
}

// SMTPConfig holds the mail relay settings
type SMTPConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	From         string
	PrinterEmail string
	Timeout      time.Duration
}

// RedisConfig holds the session cache settings. When disabled an
// in-process store is used.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig holds the S3 archive settings
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// AccountingConfig holds the authorization and usage log settings
type AccountingConfig struct {
	DSN      string
	AdminIDs []int64
}

// SpoolConfig holds where uploaded originals are kept between requests
type SpoolConfig struct {
	Dir string
}

// Load reads configuration from environment variables and an optional
// config.toml.
//
// Priority (highest to lowest):
// 1. Environment variables with PRINTRELAY_ prefix (e.g., PRINTRELAY_SMTP_HOST)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/print-relay")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PRINTRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:           v.GetString("app.name"),
			Env:            v.GetString("app.env"),
			Port:           v.GetString("app.port"),
			AllowedOrigins: v.GetStringSlice("app.allowed_origins"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Render: RenderConfig{
			Backend:     v.GetString("render.backend"),
			Soffice:     v.GetString("render.soffice"),
			Ghostscript: v.GetString("render.ghostscript"),
			FFmpeg:      v.GetString("render.ffmpeg"),
			Timeout:     v.GetDuration("render.timeout"),
			TempDir:     v.GetString("render.temp_dir"),
		},
		SMTP: SMTPConfig{
			Host:         v.GetString("smtp.host"),
			Port:         v.GetInt("smtp.port"),
			User:         v.GetString("smtp.user"),
			Password:     v.GetString("smtp.password"),
			From:         v.GetString("smtp.from"),
			PrinterEmail: v.GetString("smtp.printer_email"),
			Timeout:      v.GetDuration("smtp.timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Accounting: AccountingConfig{
			DSN: v.GetString("accounting.dsn"),
		},
		Spool: SpoolConfig{
			Dir: v.GetString("spool.dir"),
		},
	}

	ids, err := parseIDs(v.GetStringSlice("accounting.admin_ids"))
	if err != nil {
		return nil, err
	}
	cfg.Accounting.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "print-relay")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8085")
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("log.output", "stdout")

	v.SetDefault("render.backend", "ghostscript")
	v.SetDefault("render.soffice", "soffice")
	v.SetDefault("render.ghostscript", "gs")
	v.SetDefault("render.ffmpeg", "ffmpeg")
	v.SetDefault("render.timeout", 60*time.Second)

	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.timeout", 30*time.Second)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("accounting.dsn", "print-relay.db")
	v.SetDefault("spool.dir", "spool")
}

func parseIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, item := range raw {
		for _, field := range strings.Split(item, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			var id int64
			if _, err := fmt.Sscan(field, &id); err != nil {
				return nil, fmt.Errorf("accounting.admin_ids: invalid id %q", field)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	switch c.Render.Backend {
	case "ghostscript", "mupdf":
	default:
		return fmt.Errorf("render.backend must be ghostscript or mupdf, got %q", c.Render.Backend)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("render.timeout must be positive")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port out of range: %d", c.SMTP.Port)
	}
	if c.Redis.Enabled && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be positive")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required in production")
		}
		if c.SMTP.PrinterEmail == "" {
			return fmt.Errorf("smtp.printer_email is required in production")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required in production")
		}
	}
	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
