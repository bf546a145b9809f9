package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"flulance/internal/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	defaultConfigPath        = "config/config.yaml"
	defaultMaxAttachmentSize = 50 << 20
)

type Config struct {
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		Env             string        `yaml:"env"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Driver          string        `yaml:"driver"` // postgres, mysql, sqlite
		DSN             string        `yaml:"url"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		AutoMigrate     bool          `yaml:"auto_migrate"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
	} `yaml:"jwt"`

	Storage struct {
		Type       string `yaml:"type"`        // local, s3, cloudflare_r2, memory
		BasePath   string `yaml:"base_path"`   // For local storage
		BaseURL    string `yaml:"base_url"`    // Public URL base
		Bucket     string `yaml:"bucket"`      // For S3/R2
		Region     string `yaml:"region"`      // For S3
		AccessKey  string `yaml:"access_key"`  // For S3/R2
		SecretKey  string `yaml:"secret_key"`  // For S3/R2
		Endpoint   string `yaml:"endpoint"`    // For R2 or custom S3
		PublicRead bool   `yaml:"public_read"` // Make files public
	} `yaml:"storage"`

	Upload struct {
		MaxAttachmentSize int64    `yaml:"max_attachment_size"`
		AllowedTypes      []string `yaml:"allowed_types"` // MIME prefixes, empty means any
	} `yaml:"upload"`

	Chat struct {
		AllowAfterCompletion bool `yaml:"allow_after_completion"`
		DefaultPageSize      int  `yaml:"default_page_size"`
		MaxPageSize          int  `yaml:"max_page_size"`
	} `yaml:"chat"`

	Delivery struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval"`
		BatchSize int           `yaml:"batch_size"`
		LogOnly   bool          `yaml:"log_only"`

		SMTP struct {
			Host      string `yaml:"host"`
			Port      int    `yaml:"port"`
			Username  string `yaml:"username"`
			Password  string `yaml:"password"`
			FromEmail string `yaml:"from_email"`
			FromName  string `yaml:"from_name"`
		} `yaml:"smtp"`

		Telegram struct {
			BotToken string `yaml:"bot_token"`
		} `yaml:"telegram"`

		// PublicURL prefixes notification deep links in outgoing messages.
		PublicURL string `yaml:"public_url"`
	} `yaml:"delivery"`
}

var AppConfig *Config

// Load reads configuration from a .env file (optional), the YAML file at path
// (optional unless CONFIG_PATH was set explicitly) and the environment, in that
// order of increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigPath
	}

	if err := readFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		logger.Debug("config file not found, using environment only", "path", path)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the process-wide configuration and exits on failure.
func LoadConfig() *Config {
	cfg, err := Load("")
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}
	AppConfig = cfg
	return cfg
}

func readFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "SERVER_ENV")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")

	setString(&cfg.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.BasePath, "STORAGE_BASE_PATH")
	setString(&cfg.Storage.BaseURL, "STORAGE_BASE_URL")
	setString(&cfg.Storage.Bucket, "S3_BUCKET")
	setString(&cfg.Storage.Region, "S3_REGION")
	setString(&cfg.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&cfg.Storage.Endpoint, "S3_ENDPOINT")

	setString(&cfg.Delivery.SMTP.Host, "SMTP_HOST")
	setInt(&cfg.Delivery.SMTP.Port, "SMTP_PORT")
	setString(&cfg.Delivery.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.Delivery.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.Delivery.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "flulance"
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.Type == "local" && cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./uploads"
	}

	if cfg.Upload.MaxAttachmentSize == 0 {
		cfg.Upload.MaxAttachmentSize = defaultMaxAttachmentSize
	}

	if cfg.Chat.DefaultPageSize == 0 {
		cfg.Chat.DefaultPageSize = 200
	}
	if cfg.Chat.MaxPageSize == 0 {
		cfg.Chat.MaxPageSize = 500
	}

	if cfg.Delivery.Interval == 0 {
		cfg.Delivery.Interval = 15 * time.Second
	}
	if cfg.Delivery.BatchSize == 0 {
		cfg.Delivery.BatchSize = 50
	}
	if cfg.Delivery.SMTP.Port == 0 {
		cfg.Delivery.SMTP.Port = 587
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.url is required")
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Upload.MaxAttachmentSize < 0 {
		problems = append(problems, "upload.max_attachment_size must be positive")
	}
	if c.Chat.DefaultPageSize > c.Chat.MaxPageSize {
		problems = append(problems, "chat.default_page_size exceeds chat.max_page_size")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("ignoring non-numeric environment value", "key", key, "value", v)
		return
	}
	*dst = n
}
