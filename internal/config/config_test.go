package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/relay/internal/model"
)

const (
	ownerA = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	ownerB = "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

// relayEnvVars lists every env var read by Load; each test starts with all unset.
var relayEnvVars = []string{
	"RELAY_DATABASE_URL", "RELAY_SQLITE_PATH", "RELAY_LISTEN_ADDR", "RELAY_ADMIN_GRPC_ADDR",
	"RELAY_NATS_URL", "RELAY_ADMIN_TOKEN", "RELAY_OWNERS", "RELAY_ALLOWED_ORIGINS",
	"RELAY_DEFAULT_LIMIT", "RELAY_MAX_LIMIT", "RELAY_MAX_IN_FLIGHT", "RELAY_CHALLENGE_LENGTH",
	"RELAY_MAX_MESSAGE_BYTES", "RELAY_IDLE_TIMEOUT",
	"RELAY_BLOB_S3_BUCKET", "RELAY_BLOB_S3_PREFIX", "RELAY_BLOB_S3_REGION", "RELAY_BLOB_S3_ENDPOINT",
	"RELAY_SYNC_INTERVAL", "RELAY_SYNC_S3_BUCKET", "RELAY_SYNC_S3_ENDPOINT", "RELAY_SYNC_S3_REGION",
	"RELAY_SYNC_S3_KEY", "RELAY_SYNC_FILE",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range relayEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name           string
		env            map[string]string
		wantErr        bool
		wantListenAddr string
		wantAdminAddr  string
		wantNATSURL    string
	}{
		{
			name:    "MissingStore",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "BothStores",
			env: map[string]string{
				"RELAY_DATABASE_URL": "postgres://localhost/relay",
				"RELAY_SQLITE_PATH":  "/tmp/relay.db",
			},
			wantErr: true,
		},
		{
			name:           "DefaultAddresses",
			env:            map[string]string{"RELAY_DATABASE_URL": "postgres://localhost/relay"},
			wantListenAddr: ":7447",
			wantAdminAddr:  ":9090",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"RELAY_SQLITE_PATH":     "/var/lib/relay.db",
				"RELAY_LISTEN_ADDR":     ":3000",
				"RELAY_ADMIN_GRPC_ADDR": ":5050",
				"RELAY_NATS_URL":        "nats://localhost:4222",
			},
			wantListenAddr: ":3000",
			wantAdminAddr:  ":5050",
			wantNATSURL:    "nats://localhost:4222",
		},
		{
			name: "AdminDisabled",
			env: map[string]string{
				"RELAY_SQLITE_PATH":     "/var/lib/relay.db",
				"RELAY_ADMIN_GRPC_ADDR": "off",
			},
			wantListenAddr: ":7447",
			wantAdminAddr:  "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.ListenAddr != tc.wantListenAddr {
				t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, tc.wantListenAddr)
			}
			if cfg.AdminGRPCAddr != tc.wantAdminAddr {
				t.Errorf("AdminGRPCAddr = %q, want %q", cfg.AdminGRPCAddr, tc.wantAdminAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("RELAY_SQLITE_PATH", "relay.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Limits(); got != model.DefaultLimits {
		t.Errorf("Limits = %+v, want %+v", got, model.DefaultLimits)
	}
	if cfg.MaxInFlight != 5 {
		t.Errorf("MaxInFlight = %d, want 5", cfg.MaxInFlight)
	}
	if cfg.ChallengeLength != 12 {
		t.Errorf("ChallengeLength = %d, want 12", cfg.ChallengeLength)
	}
	if cfg.IdleTimeout != 15*time.Minute {
		t.Errorf("IdleTimeout = %v, want 15m", cfg.IdleTimeout)
	}
	if cfg.SyncInterval != 3*time.Minute {
		t.Errorf("SyncInterval = %v, want 3m", cfg.SyncInterval)
	}
	if cfg.SyncS3Key != "relay/backup.jsonl" {
		t.Errorf("SyncS3Key = %q", cfg.SyncS3Key)
	}
	if cfg.OwnerSet().Cardinality() != 0 {
		t.Errorf("expected no owners, got %v", cfg.Owners)
	}
}

func TestLoadOwnersAndOrigins(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("RELAY_SQLITE_PATH", "relay.db")
	t.Setenv("RELAY_OWNERS", ownerA+" , "+ownerB+",")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	owners := cfg.OwnerSet()
	if owners.Cardinality() != 2 || !owners.Contains(ownerA) || !owners.Contains(ownerB) {
		t.Errorf("owners = %v", owners)
	}
	if !cfg.OriginSet().Contains("https://b.example") {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadNumericOverrides(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("RELAY_SQLITE_PATH", "relay.db")
	t.Setenv("RELAY_DEFAULT_LIMIT", "20")
	t.Setenv("RELAY_MAX_LIMIT", "50")
	t.Setenv("RELAY_MAX_IN_FLIGHT", "2")
	t.Setenv("RELAY_IDLE_TIMEOUT", "90s")
	t.Setenv("RELAY_SYNC_INTERVAL", "0s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Limits(); got.Default != 20 || got.Max != 50 {
		t.Errorf("Limits = %+v", got)
	}
	if cfg.MaxInFlight != 2 {
		t.Errorf("MaxInFlight = %d", cfg.MaxInFlight)
	}
	if cfg.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0 (disabled)", cfg.SyncInterval)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	for _, tc := range []struct {
		name string
		key  string
		val  string
	}{
		{"BadInt", "RELAY_MAX_IN_FLIGHT", "five"},
		{"BadDuration", "RELAY_SYNC_INTERVAL", "not-a-duration"},
		{"BadBytes", "RELAY_MAX_MESSAGE_BYTES", "1MB"},
		{"BadOwner", "RELAY_OWNERS", "npub1xyz"},
		{"LimitsInverted", "RELAY_MAX_LIMIT", "10"},
		{"ShortChallenge", "RELAY_CHALLENGE_LENGTH", "4"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("RELAY_SQLITE_PATH", "relay.db")
			t.Setenv(tc.key, tc.val)

			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestValidate_ListsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Owners = []string{"bad"}
	cfg.MaxInFlight = 0

	err := cfg.Validate()
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *model.ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Fatalf("expected 3 problems (store, owner, in-flight), got %v", ve.Errors)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"relay.toml": `
sqlite_path = "/data/relay.db"
owners = ["` + ownerA + `"]
max_in_flight = 3
idle_timeout = "5m"
listen_addr = ":8000"
`,
		"relay.yaml": `
sqlite_path: /data/relay.db
owners:
  - ` + ownerA + `
max_in_flight: 3
idle_timeout: 5m
listen_addr: ":8000"
`,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			clearAllEnv(t)
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.SQLitePath != "/data/relay.db" {
				t.Errorf("SQLitePath = %q", cfg.SQLitePath)
			}
			if !cfg.OwnerSet().Contains(ownerA) {
				t.Errorf("owners = %v", cfg.Owners)
			}
			if cfg.MaxInFlight != 3 {
				t.Errorf("MaxInFlight = %d", cfg.MaxInFlight)
			}
			if cfg.IdleTimeout != 5*time.Minute {
				t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
			}
			// Values absent from the file keep their defaults.
			if cfg.ChallengeLength != 12 {
				t.Errorf("ChallengeLength = %d", cfg.ChallengeLength)
			}
		})
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	clearAllEnv(t)
	path := filepath.Join(t.TempDir(), "relay.toml")
	if err := os.WriteFile(path, []byte("sqlite_path = \"file.db\"\nlisten_addr = \":8000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_LISTEN_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want env override", cfg.ListenAddr)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "relay.toml")
	if err := os.WriteFile(bad, []byte("sqlite_path = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	ini := filepath.Join(dir, "relay.ini")
	if err := os.WriteFile(ini, []byte("x=1"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		path string
		want string
	}{
		{filepath.Join(dir, "missing.toml"), "read config"},
		{bad, "decode TOML"},
		{ini, "unsupported config format"},
	} {
		clearAllEnv(t)
		_, err := Load(tc.path)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("Load(%s) err = %v, want %q", filepath.Base(tc.path), err, tc.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
