package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Storage backends for uploaded receipt files.
const (
	UploadBackendLocal = "local"
	UploadBackendS3    = "s3"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is empty")
	ErrUnknownDriver      = errors.New("DB_DRIVER must be postgres or sqlite")
	ErrUnknownBackend     = errors.New("UPLOAD_BACKEND must be local or s3")
	ErrMissingBucket      = errors.New("S3_BUCKET is required when UPLOAD_BACKEND=s3")
)

type Config struct {
	Port      string
	Log       LogConfig
	Database  DatabaseConfig
	Session   SessionConfig
	CORS      CORSConfig
	Uploads   UploadConfig
	Parser    ParserConfig
	RateLimit RateLimitConfig
}

type LogConfig struct {
	Level  string
	Format string // json | console
}

type DatabaseConfig struct {
	URL             string
	Driver          string
	Schema          string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

type SessionConfig struct {
	TTL          time.Duration
	SecureCookie bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type UploadConfig struct {
	Backend           string
	Dir               string
	MaxBytes          int64
	S3Bucket          string
	S3Region          string
	S3Prefix          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ParserConfig covers the extraction API and the background parse workers.
type ParserConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Workers   int
	QueueSize int
}

type RateLimitConfig struct {
	APIRequests    int
	APIWindow      time.Duration
	UploadRequests int
	UploadWindow   time.Duration
}

// Default returns the configuration used when neither a YAML file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Port: "5050",
		Log:  LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Schema:          "buildtrack",
			MaxOpenConns:    20,
			ConnMaxLifetime: 30 * time.Minute,
			SlowThreshold:   100 * time.Millisecond,
		},
		Session: SessionConfig{TTL: 6 * time.Hour},
		CORS: CORSConfig{AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:5000",
		}},
		Uploads: UploadConfig{
			Backend:  UploadBackendLocal,
			Dir:      "uploads/receipts",
			MaxBytes: 10 << 20,
			S3Prefix: "receipts",
		},
		Parser: ParserConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 1000,
			Timeout:   60 * time.Second,
			Workers:   4,
			QueueSize: 64,
		},
		RateLimit: RateLimitConfig{
			APIRequests:    100,
			APIWindow:      15 * time.Minute,
			UploadRequests: 10,
			UploadWindow:   15 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := applyYAML(&cfg, data); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the values a server cannot start without. A missing
// extraction API key is allowed; parse attempts then fail and are recorded
// on the receipt.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return ErrUnknownDriver
	}
	switch c.Uploads.Backend {
	case UploadBackendLocal:
	case UploadBackendS3:
		if c.Uploads.S3Bucket == "" {
			return ErrMissingBucket
		}
	default:
		return ErrUnknownBackend
	}
	if c.Uploads.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if c.RateLimit.APIRequests <= 0 || c.RateLimit.UploadRequests <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.RateLimit.APIWindow <= 0 || c.RateLimit.UploadWindow <= 0 {
		return errors.New("rate limit windows must be positive")
	}
	if c.Parser.Workers <= 0 || c.Parser.QueueSize <= 0 {
		return errors.New("PARSE_WORKERS and PARSE_QUEUE_SIZE must be positive")
	}
	return nil
}

// fileConfig mirrors Config for YAML files. Durations are written as Go
// duration strings ("15m", "6h").
type fileConfig struct {
	Port string `yaml:"port"`
	Log  struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Database struct {
		URL             string `yaml:"url"`
		Driver          string `yaml:"driver"`
		Schema          string `yaml:"schema"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		SlowThreshold   string `yaml:"slow_threshold"`
	} `yaml:"database"`
	Session struct {
		TTL          string `yaml:"ttl"`
		SecureCookie *bool  `yaml:"secure_cookie"`
	} `yaml:"session"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Uploads struct {
		Backend    string `yaml:"backend"`
		Dir        string `yaml:"dir"`
		MaxBytes   int64  `yaml:"max_bytes"`
		S3Bucket   string `yaml:"s3_bucket"`
		S3Region   string `yaml:"s3_region"`
		S3Prefix   string `yaml:"s3_prefix"`
		S3Endpoint string `yaml:"s3_endpoint"`
	} `yaml:"uploads"`
	Parser struct {
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
		Timeout   string `yaml:"timeout"`
		Workers   int    `yaml:"workers"`
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"parser"`
	RateLimit struct {
		APIRequests    int    `yaml:"api_requests"`
		APIWindow      string `yaml:"api_window"`
		UploadRequests int    `yaml:"upload_requests"`
		UploadWindow   string `yaml:"upload_window"`
	} `yaml:"rate_limit"`
}

func applyYAML(cfg *Config, data []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}

	setString(&cfg.Port, f.Port)
	setString(&cfg.Log.Level, f.Log.Level)
	setString(&cfg.Log.Format, f.Log.Format)

	setString(&cfg.Database.URL, f.Database.URL)
	setString(&cfg.Database.Driver, f.Database.Driver)
	setString(&cfg.Database.Schema, f.Database.Schema)
	setInt(&cfg.Database.MaxOpenConns, f.Database.MaxOpenConns)

	setString(&cfg.Uploads.Backend, f.Uploads.Backend)
	setString(&cfg.Uploads.Dir, f.Uploads.Dir)
	if f.Uploads.MaxBytes > 0 {
		cfg.Uploads.MaxBytes = f.Uploads.MaxBytes
	}
	setString(&cfg.Uploads.S3Bucket, f.Uploads.S3Bucket)
	setString(&cfg.Uploads.S3Region, f.Uploads.S3Region)
	setString(&cfg.Uploads.S3Prefix, f.Uploads.S3Prefix)
	setString(&cfg.Uploads.S3Endpoint, f.Uploads.S3Endpoint)

	setString(&cfg.Parser.APIKey, f.Parser.APIKey)
	setString(&cfg.Parser.BaseURL, f.Parser.BaseURL)
	setString(&cfg.Parser.Model, f.Parser.Model)
	setInt(&cfg.Parser.MaxTokens, f.Parser.MaxTokens)
	setInt(&cfg.Parser.Workers, f.Parser.Workers)
	setInt(&cfg.Parser.QueueSize, f.Parser.QueueSize)

	setInt(&cfg.RateLimit.APIRequests, f.RateLimit.APIRequests)
	setInt(&cfg.RateLimit.UploadRequests, f.RateLimit.UploadRequests)

	if f.Session.SecureCookie != nil {
		cfg.Session.SecureCookie = *f.Session.SecureCookie
	}
	if len(f.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = f.CORS.AllowedOrigins
	}

	durations := []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&cfg.Database.ConnMaxLifetime, f.Database.ConnMaxLifetime, "database.conn_max_lifetime"},
		{&cfg.Database.SlowThreshold, f.Database.SlowThreshold, "database.slow_threshold"},
		{&cfg.Session.TTL, f.Session.TTL, "session.ttl"},
		{&cfg.Parser.Timeout, f.Parser.Timeout, "parser.timeout"},
		{&cfg.RateLimit.APIWindow, f.RateLimit.APIWindow, "rate_limit.api_window"},
		{&cfg.RateLimit.UploadWindow, f.RateLimit.UploadWindow, "rate_limit.upload_window"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(cfg *Config) error {
	envString(&cfg.Port, "PORT")
	envString(&cfg.Log.Level, "LOG_LEVEL")
	envString(&cfg.Log.Format, "LOG_FORMAT")

	envString(&cfg.Database.URL, "DATABASE_URL")
	envString(&cfg.Database.Driver, "DB_DRIVER")
	envString(&cfg.Database.Schema, "DB_SCHEMA")

	envString(&cfg.Uploads.Backend, "UPLOAD_BACKEND")
	envString(&cfg.Uploads.Dir, "UPLOAD_DIR")
	envString(&cfg.Uploads.S3Bucket, "S3_BUCKET")
	envString(&cfg.Uploads.S3Region, "S3_REGION")
	envString(&cfg.Uploads.S3Prefix, "S3_PREFIX")
	envString(&cfg.Uploads.S3Endpoint, "S3_ENDPOINT")
	envString(&cfg.Uploads.S3AccessKeyID, "S3_ACCESS_KEY_ID")
	envString(&cfg.Uploads.S3SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	envString(&cfg.Parser.APIKey, "OPENAI_API_KEY")
	envString(&cfg.Parser.BaseURL, "OPENAI_BASE_URL")
	envString(&cfg.Parser.Model, "OPENAI_MODEL")

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS"},
		{&cfg.Parser.MaxTokens, "OPENAI_MAX_TOKENS"},
		{&cfg.Parser.Workers, "PARSE_WORKERS"},
		{&cfg.Parser.QueueSize, "PARSE_QUEUE_SIZE"},
		{&cfg.RateLimit.APIRequests, "RATE_LIMIT_API"},
		{&cfg.RateLimit.UploadRequests, "RATE_LIMIT_UPLOAD"},
	}
	for _, e := range ints {
		if err := envInt(e.dst, e.key); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(os.Getenv("UPLOAD_MAX_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("UPLOAD_MAX_BYTES: %w", err)
		}
		cfg.Uploads.MaxBytes = n
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.Database.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME"},
		{&cfg.Database.SlowThreshold, "DB_SLOW_THRESHOLD"},
		{&cfg.Session.TTL, "SESSION_TTL"},
		{&cfg.Parser.Timeout, "OPENAI_TIMEOUT"},
		{&cfg.RateLimit.APIWindow, "RATE_LIMIT_API_WINDOW"},
		{&cfg.RateLimit.UploadWindow, "RATE_LIMIT_UPLOAD_WINDOW"},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("SESSION_SECURE_COOKIE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SESSION_SECURE_COOKIE: %w", err)
		}
		cfg.Session.SecureCookie = b
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.Uploads.Backend = strings.ToLower(cfg.Uploads.Backend)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func envString(dst *string, key string) {
	setString(dst, os.Getenv(key))
}

func envInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
