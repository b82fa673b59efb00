// Package config handles loading and validating the application
// configuration.
//
// Configuration comes from an optional JSON file plus environment
// variable overrides; every field has an envar so the consumer runs
// with no file at all in containers.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Exporter selector values accepted by the exporter field.
const (
	ExporterDryRun        = "dry-run"
	ExporterJSONL         = "jsonl"
	ExporterCSV           = "csv"
	ExporterDocumentStore = "document-store"
	ExporterPrometheus    = "prometheus"
)

// Config holds all application configuration. The file is read once at
// startup; changes require a restart.
type Config struct {
	// Relay is the firehose relay host (default "bsky.network").
	Relay string `json:"relay"`

	// Exporter selects the sink: dry-run, jsonl, csv, document-store
	// or prometheus (default "dry-run").
	Exporter string `json:"exporter"`

	// FilePath is the output file for the jsonl and csv exporters.
	FilePath string `json:"filePath"`

	// DBConn is the PostgreSQL host:port for the document-store
	// exporter (e.g., "infra-postgres:5432").
	DBConn string `json:"dbConn"`

	// DBName is the PostgreSQL database name.
	DBName string `json:"dbName"`

	// DBUser is the PostgreSQL username.
	DBUser string `json:"dbUser"`

	// DBPass is the PostgreSQL password.
	DBPass string `json:"dbPass"`

	// FetchUserData enables resolving full author profiles through the
	// AppView when exporting to the document store.
	FetchUserData bool `json:"fetchUserData"`

	// MetricsAddr is the /metrics listen address (default ":9100").
	MetricsAddr string `json:"metricsAddr"`

	// ReadTimeoutSecs bounds each websocket read (default 30).
	ReadTimeoutSecs int `json:"readTimeoutSecs"`

	// MaxSampleSize is the post count after which the prometheus posts
	// counter rolls over (default 10000).
	MaxSampleSize int `json:"maxSampleSize"`

	// NormalizeLangs reduces post language tags to primary subtags in
	// the prometheus exporter (default true).
	NormalizeLangs *bool `json:"normalizeLangs"`
}

// Load reads configuration from the given file path when it exists,
// applies environment overrides, fills defaults and validates. A
// missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Relay == "" {
		cfg.Relay = "bsky.network"
	}
	if cfg.Exporter == "" {
		cfg.Exporter = ExporterDryRun
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9100"
	}
	if cfg.ReadTimeoutSecs == 0 {
		cfg.ReadTimeoutSecs = 30
	}
	if cfg.NormalizeLangs == nil {
		t := true
		cfg.NormalizeLangs = &t
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&c.Relay, "ATPROTO_RELAY")
	setString(&c.Exporter, "EXPORTER")
	setString(&c.FilePath, "FILE_EXPORT_PATH")
	setString(&c.DBConn, "DB_CONN")
	setString(&c.DBName, "DB_NAME")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPass, "DB_PASS")
	setString(&c.MetricsAddr, "METRICS_ADDR")

	if v, ok := os.LookupEnv("FETCH_USER_DATA"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: FETCH_USER_DATA: %w", err)
		}
		c.FetchUserData = b
	}
	if v, ok := os.LookupEnv("NORMALIZE_LANGS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: NORMALIZE_LANGS: %w", err)
		}
		c.NormalizeLangs = &b
	}
	if v, ok := os.LookupEnv("MAX_SAMPLE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MAX_SAMPLE_SIZE: %w", err)
		}
		c.MaxSampleSize = n
	}
	if v, ok := os.LookupEnv("READ_TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: READ_TIMEOUT: %w", err)
		}
		c.ReadTimeoutSecs = n
	}
	return nil
}

// validate checks that the selected exporter has what it needs.
func (c *Config) validate() error {
	switch c.Exporter {
	case ExporterDryRun, ExporterPrometheus:
	case ExporterJSONL, ExporterCSV:
		if c.FilePath == "" {
			return fmt.Errorf("config: filePath is required for the %s exporter", c.Exporter)
		}
	case ExporterDocumentStore:
		switch {
		case c.DBConn == "":
			return fmt.Errorf("config: dbConn is required for the document-store exporter")
		case c.DBName == "":
			return fmt.Errorf("config: dbName is required for the document-store exporter")
		case c.DBUser == "":
			return fmt.Errorf("config: dbUser is required for the document-store exporter")
		case c.DBPass == "":
			return fmt.Errorf("config: dbPass is required for the document-store exporter")
		}
	default:
		return fmt.Errorf("config: unknown exporter %q", c.Exporter)
	}

	if c.MaxSampleSize < 0 {
		return fmt.Errorf("config: maxSampleSize must not be negative")
	}
	return nil
}

// ConnString builds a PostgreSQL connection URI from the config fields.
// The password is URL-encoded to handle special characters safely.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPass),
		c.DBConn,
		url.QueryEscape(c.DBName),
	)
}
