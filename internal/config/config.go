// Package config loads relay settings from an optional TOML or YAML file and
// RELAY_* environment variables. Environment values override the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/relay/internal/model"
)

type Config struct {
	DatabaseURL   string `toml:"database_url" yaml:"database_url"`       // RELAY_DATABASE_URL (postgres; one of DatabaseURL or SQLitePath)
	SQLitePath    string `toml:"sqlite_path" yaml:"sqlite_path"`         // RELAY_SQLITE_PATH
	ListenAddr    string `toml:"listen_addr" yaml:"listen_addr"`         // RELAY_LISTEN_ADDR (default ":7447")
	AdminGRPCAddr string `toml:"admin_grpc_addr" yaml:"admin_grpc_addr"` // RELAY_ADMIN_GRPC_ADDR (default ":9090", "off" = disabled)
	NATSURL       string `toml:"nats_url" yaml:"nats_url"`               // RELAY_NATS_URL (optional, empty = no events)
	AdminToken    string `toml:"admin_token" yaml:"admin_token"`         // RELAY_ADMIN_TOKEN (optional, guards GET /v1/connections)

	// Owners are the hex public keys allowed to publish and read privileged kinds.
	Owners []string `toml:"owners" yaml:"owners"` // RELAY_OWNERS (comma-separated)

	DefaultLimit    int `toml:"default_limit" yaml:"default_limit"`       // RELAY_DEFAULT_LIMIT (default 100)
	MaxLimit        int `toml:"max_limit" yaml:"max_limit"`               // RELAY_MAX_LIMIT (default 500)
	MaxInFlight     int `toml:"max_in_flight" yaml:"max_in_flight"`       // RELAY_MAX_IN_FLIGHT (default 5)
	ChallengeLength int `toml:"challenge_length" yaml:"challenge_length"` // RELAY_CHALLENGE_LENGTH (default 12)

	AllowedOrigins  []string      `toml:"allowed_origins" yaml:"allowed_origins"`     // RELAY_ALLOWED_ORIGINS (comma-separated, empty = any)
	MaxMessageBytes int64         `toml:"max_message_bytes" yaml:"max_message_bytes"` // RELAY_MAX_MESSAGE_BYTES (default 512KiB)
	IdleTimeout     time.Duration `toml:"idle_timeout" yaml:"idle_timeout"`           // RELAY_IDLE_TIMEOUT (default 15m; 0 = never)

	// Blob settings (shared-file payloads). Empty bucket = in-memory.
	BlobS3Bucket   string `toml:"blob_s3_bucket" yaml:"blob_s3_bucket"`     // RELAY_BLOB_S3_BUCKET
	BlobS3Prefix   string `toml:"blob_s3_prefix" yaml:"blob_s3_prefix"`     // RELAY_BLOB_S3_PREFIX (default "files")
	BlobS3Region   string `toml:"blob_s3_region" yaml:"blob_s3_region"`     // RELAY_BLOB_S3_REGION (default "us-east-1")
	BlobS3Endpoint string `toml:"blob_s3_endpoint" yaml:"blob_s3_endpoint"` // RELAY_BLOB_S3_ENDPOINT (custom endpoint for MinIO)

	// Backup settings
	SyncInterval   time.Duration `toml:"sync_interval" yaml:"sync_interval"`       // RELAY_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        `toml:"sync_s3_bucket" yaml:"sync_s3_bucket"`     // RELAY_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        `toml:"sync_s3_endpoint" yaml:"sync_s3_endpoint"` // RELAY_SYNC_S3_ENDPOINT
	SyncS3Region   string        `toml:"sync_s3_region" yaml:"sync_s3_region"`     // RELAY_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        `toml:"sync_s3_key" yaml:"sync_s3_key"`           // RELAY_SYNC_S3_KEY (default "relay/backup.jsonl")
	SyncFile       string        `toml:"sync_file" yaml:"sync_file"`               // RELAY_SYNC_FILE (enables a local file backup)
}

// Default returns a Config with every default applied and no store configured.
func Default() *Config {
	return &Config{
		ListenAddr:      ":7447",
		AdminGRPCAddr:   ":9090",
		DefaultLimit:    model.DefaultLimits.Default,
		MaxLimit:        model.DefaultLimits.Max,
		MaxInFlight:     5,
		ChallengeLength: 12,
		MaxMessageBytes: 512 * 1024,
		IdleTimeout:     15 * time.Minute,
		BlobS3Prefix:    "files",
		BlobS3Region:    "us-east-1",
		SyncInterval:    3 * time.Minute,
		SyncS3Region:    "us-east-1",
		SyncS3Key:       "relay/backup.jsonl",
	}
}

// Load builds the configuration: defaults, then the file at path (if
// non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := loadFile(path, c); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DatabaseURL = envOrDefault("RELAY_DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = envOrDefault("RELAY_SQLITE_PATH", c.SQLitePath)
	c.ListenAddr = envOrDefault("RELAY_LISTEN_ADDR", c.ListenAddr)
	c.AdminGRPCAddr = envOrDefault("RELAY_ADMIN_GRPC_ADDR", c.AdminGRPCAddr)
	c.NATSURL = envOrDefault("RELAY_NATS_URL", c.NATSURL)
	c.AdminToken = envOrDefault("RELAY_ADMIN_TOKEN", c.AdminToken)
	c.BlobS3Bucket = envOrDefault("RELAY_BLOB_S3_BUCKET", c.BlobS3Bucket)
	c.BlobS3Prefix = envOrDefault("RELAY_BLOB_S3_PREFIX", c.BlobS3Prefix)
	c.BlobS3Region = envOrDefault("RELAY_BLOB_S3_REGION", c.BlobS3Region)
	c.BlobS3Endpoint = envOrDefault("RELAY_BLOB_S3_ENDPOINT", c.BlobS3Endpoint)
	c.SyncS3Bucket = envOrDefault("RELAY_SYNC_S3_BUCKET", c.SyncS3Bucket)
	c.SyncS3Endpoint = envOrDefault("RELAY_SYNC_S3_ENDPOINT", c.SyncS3Endpoint)
	c.SyncS3Region = envOrDefault("RELAY_SYNC_S3_REGION", c.SyncS3Region)
	c.SyncS3Key = envOrDefault("RELAY_SYNC_S3_KEY", c.SyncS3Key)
	c.SyncFile = envOrDefault("RELAY_SYNC_FILE", c.SyncFile)

	if v := os.Getenv("RELAY_OWNERS"); v != "" {
		c.Owners = splitList(v)
	}
	if v := os.Getenv("RELAY_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	// "off" disables the admin gRPC server.
	if c.AdminGRPCAddr == "off" {
		c.AdminGRPCAddr = ""
	}

	for _, v := range []struct {
		key string
		dst *int
	}{
		{"RELAY_DEFAULT_LIMIT", &c.DefaultLimit},
		{"RELAY_MAX_LIMIT", &c.MaxLimit},
		{"RELAY_MAX_IN_FLIGHT", &c.MaxInFlight},
		{"RELAY_CHALLENGE_LENGTH", &c.ChallengeLength},
	} {
		s := os.Getenv(v.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s: %w", v.key, err)
		}
		*v.dst = n
	}

	if s := os.Getenv("RELAY_MAX_MESSAGE_BYTES"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("RELAY_MAX_MESSAGE_BYTES: %w", err)
		}
		c.MaxMessageBytes = n
	}

	for _, v := range []struct {
		key string
		dst *time.Duration
	}{
		{"RELAY_IDLE_TIMEOUT", &c.IdleTimeout},
		{"RELAY_SYNC_INTERVAL", &c.SyncInterval},
	} {
		s := os.Getenv(v.key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s: %w", v.key, err)
		}
		*v.dst = d
	}
	return nil
}

// Validate checks cross-field constraints and returns a *model.ValidationError
// listing every problem.
func (c *Config) Validate() error {
	var ve model.ValidationError
	add := func(field, msg string) { ve.Addf(field, "%s", msg) }

	switch {
	case c.DatabaseURL == "" && c.SQLitePath == "":
		add("database_url", "one of RELAY_DATABASE_URL or RELAY_SQLITE_PATH is required")
	case c.DatabaseURL != "" && c.SQLitePath != "":
		add("database_url", "RELAY_DATABASE_URL and RELAY_SQLITE_PATH are mutually exclusive")
	}
	for _, owner := range c.Owners {
		if !model.IsHexKey(owner) {
			add("owners", fmt.Sprintf("%q is not a 64-character lowercase hex public key", owner))
		}
	}
	if c.DefaultLimit <= 0 {
		add("default_limit", "must be positive")
	}
	if c.MaxLimit < c.DefaultLimit {
		add("max_limit", fmt.Sprintf("must be at least default_limit (%d)", c.DefaultLimit))
	}
	if c.MaxInFlight <= 0 {
		add("max_in_flight", "must be positive")
	}
	if c.ChallengeLength < 8 {
		add("challenge_length", "must be at least 8")
	}
	if c.MaxMessageBytes <= 0 {
		add("max_message_bytes", "must be positive")
	}
	if c.IdleTimeout < 0 {
		add("idle_timeout", "must not be negative")
	}
	if c.SyncInterval < 0 {
		add("sync_interval", "must not be negative")
	}

	return ve.Err()
}

// Limits returns the result limits for filters.
func (c *Config) Limits() model.Limits {
	return model.Limits{Default: c.DefaultLimit, Max: c.MaxLimit}
}

// OwnerSet returns the owner public keys as a set.
func (c *Config) OwnerSet() mapset.Set[string] {
	return mapset.NewSet(c.Owners...)
}

// OriginSet returns the allowed WebSocket origins. An empty set allows any.
func (c *Config) OriginSet() mapset.Set[string] {
	return mapset.NewSet(c.AllowedOrigins...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
