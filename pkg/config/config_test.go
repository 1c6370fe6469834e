package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Database struct {
		DSN      string `yaml:"dsn" json:"dsn"`
		MaxConns int    `yaml:"max_conns" json:"max_conns"`
	} `yaml:"database" json:"database"`
	Server struct {
		Port    int      `yaml:"port" json:"port"`
		Host    string   `yaml:"host" json:"host"`
		Tags    []string `yaml:"tags" json:"tags"`
		Timeout Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"server" json:"server"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestDecode_YAML(t *testing.T) {
	path := writeFile(t, "test.yaml", `
database:
  dsn: "postgres://localhost/test"
  max_conns: 25
server:
  port: 8080
  host: "localhost"
  timeout: 1500ms
`)

	var cfg testConfig
	if err := Decode(path, &cfg); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Errorf("Database.DSN = %v, want postgres://localhost/test", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want 25", cfg.Database.MaxConns)
	}
	if cfg.Server.Timeout.Std() != 1500*time.Millisecond {
		t.Errorf("Server.Timeout = %v, want 1.5s", cfg.Server.Timeout)
	}
}

func TestDecode_JSON(t *testing.T) {
	path := writeFile(t, "test.json", `{
  "database": {"dsn": "postgres://localhost/test", "max_conns": 25},
  "server": {"port": 8080, "host": "localhost", "timeout": "2s"}
}`)

	var cfg testConfig
	if err := Decode(path, &cfg); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Timeout.Std() != 2*time.Second {
		t.Errorf("Server.Timeout = %v, want 2s", cfg.Server.Timeout)
	}
}

func TestDecode_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Decode(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("Decode() of a missing file should fail")
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := writeFile(t, "test.yaml", `
database:
  dsn: "postgres://localhost/test"
  max_conns: 25
server:
  port: 8080
  host: "localhost"
`)
	t.Setenv("APP_DATABASE_DSN", "postgres://env/test")
	t.Setenv("APP_DATABASE_MAX_CONNS", "40")
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_SERVER_TAGS", "a, b")
	t.Setenv("APP_SERVER_TIMEOUT", "3s")

	var cfg testConfig
	if err := LoadWithEnv(path, "APP", &cfg); err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}

	if cfg.Database.DSN != "postgres://env/test" {
		t.Errorf("Database.DSN = %v, want postgres://env/test", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 40 {
		t.Errorf("Database.MaxConns = %v, want 40", cfg.Database.MaxConns)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %v, want localhost", cfg.Server.Host)
	}
	if len(cfg.Server.Tags) != 2 || cfg.Server.Tags[1] != "b" {
		t.Errorf("Server.Tags = %v, want [a b]", cfg.Server.Tags)
	}
	if cfg.Server.Timeout.Std() != 3*time.Second {
		t.Errorf("Server.Timeout = %v, want 3s", cfg.Server.Timeout)
	}
}

func TestApplyEnvOverrides_InvalidValue(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "eighty")
	var cfg testConfig
	if err := ApplyEnvOverrides("APP", &cfg); err == nil {
		t.Error("ApplyEnvOverrides() should fail for a non-numeric port")
	}
	if err := ApplyEnvOverrides("APP", cfg); err == nil {
		t.Error("ApplyEnvOverrides() should reject a non-pointer target")
	}
}

func TestEnvKey(t *testing.T) {
	if got := EnvKey("TASKEXEC", "pool.queue_capacity"); got != "TASKEXEC_POOL_QUEUE_CAPACITY" {
		t.Errorf("EnvKey() = %s, want TASKEXEC_POOL_QUEUE_CAPACITY", got)
	}
}

func TestRequired(t *testing.T) {
	var cfg testConfig
	cfg.Database.MaxConns = 25

	validator := Required("database.dsn")
	if err := validator.Validate(&cfg); err == nil {
		t.Error("Required() should fail for empty DSN")
	}

	cfg.Database.DSN = "postgres://localhost/test"
	if err := validator.Validate(&cfg); err != nil {
		t.Errorf("Required() should pass for valid config: %v", err)
	}
	if err := Required("database.nope").Validate(&cfg); err == nil {
		t.Error("Required() should fail for an unknown field")
	}
}

func TestRange(t *testing.T) {
	var cfg testConfig
	cfg.Database.MaxConns = 5

	validator := Range("database.max_conns", 10, 100)
	if err := validator.Validate(&cfg); err == nil {
		t.Error("Range() should fail for value below minimum")
	}

	cfg.Database.MaxConns = 50
	if err := validator.Validate(&cfg); err != nil {
		t.Errorf("Range() should pass for value in range: %v", err)
	}
	if err := Range("server.host", 0, 1).Validate(&cfg); err == nil {
		t.Error("Range() should fail for a non-numeric field")
	}
}

func TestOneOf(t *testing.T) {
	var cfg testConfig
	cfg.Server.Host = "LOCALHOST"
	if err := OneOf("server.host", "localhost", "0.0.0.0").Validate(&cfg); err != nil {
		t.Errorf("OneOf() error = %v", err)
	}
	cfg.Server.Host = "example.com"
	if err := OneOf("server.host", "localhost").Validate(&cfg); err == nil {
		t.Error("OneOf() should fail for a value outside the set")
	}
}
