package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wastemetrics/internal/analytics"
)

// ErrMissingDatabaseURL is returned by Validate when DATABASE_URL is unset.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	Env             string
	ListenAddr      string
	DatabaseURL     string
	RunMigrations   bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	ImportWorkers      int
	ImportPollInterval time.Duration

	CORSAllowedOrigins []string

	// Company directory cache; disabled when RedisURL is empty.
	RedisURL          string
	DirectoryCacheTTL time.Duration

	// Uploaded CSVs go to S3 when UploadBucket is set, Postgres otherwise.
	UploadBucket string
	AWSRegion    string

	Charts Charts
}

// Charts holds the chart settings that may come from the YAML file.
type Charts struct {
	MinReportingPeriod     int             `yaml:"min_reporting_period"`
	RecoveryBins           []analytics.Bin `yaml:"recovery_bins"`
	HighPerformerThreshold float64         `yaml:"high_performer_threshold"`
	LowPerformerThreshold  float64         `yaml:"low_performer_threshold"`
}

type fileConfig struct {
	Charts Charts `yaml:"charts"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads .env (when present), the optional CONFIG_FILE and the
// environment, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getenv("APP_ENV", "development"),
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "json"),
		RedisURL:           os.Getenv("REDIS_URL"),
		UploadBucket:       os.Getenv("UPLOAD_BUCKET"),
		AWSRegion:          getenv("AWS_REGION", "us-east-1"),
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		Charts: Charts{
			MinReportingPeriod:     2015,
			RecoveryBins:           analytics.DefaultRecoveryBins,
			HighPerformerThreshold: 80,
			LowPerformerThreshold:  20,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg.Charts); err != nil {
			return cfg, err
		}
	}

	var err error
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ImportPollInterval, err = getenvDuration("IMPORT_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.DirectoryCacheTTL, err = getenvDuration("DIRECTORY_CACHE_TTL", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ImportWorkers, err = getenvInt("IMPORT_WORKERS", 0); err != nil {
		return cfg, err
	}
	if cfg.Charts.MinReportingPeriod, err = getenvInt("MIN_REPORTING_PERIOD", cfg.Charts.MinReportingPeriod); err != nil {
		return cfg, err
	}
	if cfg.RunMigrations, err = getenvBool("RUN_MIGRATIONS", false); err != nil {
		return cfg, err
	}

	if cfg.ImportWorkers < 0 {
		return cfg, fmt.Errorf("invalid IMPORT_WORKERS: must not be negative")
	}
	if _, err := analytics.NewBinner(cfg.Charts.RecoveryBins); err != nil {
		return cfg, fmt.Errorf("charts.recovery_bins: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func loadFile(path string, charts *Charts) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if fc.Charts.MinReportingPeriod != 0 {
		charts.MinReportingPeriod = fc.Charts.MinReportingPeriod
	}
	if len(fc.Charts.RecoveryBins) > 0 {
		charts.RecoveryBins = fc.Charts.RecoveryBins
	}
	if fc.Charts.HighPerformerThreshold != 0 {
		charts.HighPerformerThreshold = fc.Charts.HighPerformerThreshold
	}
	if fc.Charts.LowPerformerThreshold != 0 {
		charts.LowPerformerThreshold = fc.Charts.LowPerformerThreshold
	}
	return nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
