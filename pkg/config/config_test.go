package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigOptional_EmptyPath tests loading when file path is empty
func TestLoadConfigOptional_EmptyPath(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional with empty path should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
	if cfg.Port != 9999 {
		t.Errorf("Expected Port=9999 from env, got %d", cfg.Port)
	}
}

// TestLoadConfigOptional_FileNotExist tests loading when file does not exist
func TestLoadConfigOptional_FileNotExist(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "config-does-not-exist.yaml")

	cfg, err := LoadConfigOptional(nonExistentPath)
	if err != nil {
		t.Fatalf("LoadConfigOptional with non-existent file should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
}

// TestLoadConfigOptional_InvalidYAML tests loading when file exists but has invalid YAML
func TestLoadConfigOptional_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
port: 8080
dbPath: "pgxn.db"
  invalid indentation here
  more bad yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadConfigOptional(configPath); err == nil {
		t.Fatal("Expected error when loading invalid YAML, got nil")
	}
}

// TestLoadConfig_ValidConfig tests loading when file exists with valid config
func TestLoadConfig_ValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "valid.yaml")

	validYAML := `
port: 8080
dbPath: "/var/lib/pgxn/tester.db"
redisAddr: "localhost:6379"
redisPassword: "secret"
pgxnApiBaseUrl: "http://pgxn.local"
logLevel: "info"
env: "test"
`
	if err := os.WriteFile(configPath, []byte(validYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig with valid config should not error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected Port=8080, got %d", cfg.Port)
	}
	if cfg.DBPath != "/var/lib/pgxn/tester.db" {
		t.Errorf("Expected DBPath='/var/lib/pgxn/tester.db', got %q", cfg.DBPath)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected RedisAddr='localhost:6379', got %q", cfg.RedisAddr)
	}
	if cfg.RedisPassword != "secret" {
		t.Errorf("Expected RedisPassword='secret', got %q", cfg.RedisPassword)
	}
	if cfg.PGXNAPIBaseURL != "http://pgxn.local" {
		t.Errorf("Expected PGXNAPIBaseURL='http://pgxn.local', got %q", cfg.PGXNAPIBaseURL)
	}
	if cfg.Env != "test" {
		t.Errorf("Expected Env='test', got %q", cfg.Env)
	}
}

// TestLoadConfig_EnvOverrides tests that environment variables override file values
func TestLoadConfig_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configYAML := `
port: 8080
dbPath: "file.db"
redisAddr: "localhost:6379"
logLevel: "info"
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("REDIS_ADDR", "env-redis:6380")
	t.Setenv("PGXN_API_BASE_URL", "http://env-pgxn:9090")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig should not error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected Port=9090 from env, got %d", cfg.Port)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("Expected DBPath='/tmp/env.db' from env, got %q", cfg.DBPath)
	}
	if cfg.RedisAddr != "env-redis:6380" {
		t.Errorf("Expected RedisAddr='env-redis:6380' from env, got %q", cfg.RedisAddr)
	}
	if cfg.PGXNAPIBaseURL != "http://env-pgxn:9090" {
		t.Errorf("Expected PGXNAPIBaseURL='http://env-pgxn:9090' from env, got %q", cfg.PGXNAPIBaseURL)
	}
}

// TestLoadConfig_Defaults tests that defaults fill unset fields
func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional should not error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default Port=8080, got %d", cfg.Port)
	}
	if cfg.PGXNAPIBaseURL != "https://api.pgxn.org" {
		t.Errorf("Expected default PGXNAPIBaseURL, got %q", cfg.PGXNAPIBaseURL)
	}
	if cfg.QueueRequestsPerMinute != 60 || cfg.QueueBurstSize != 10 {
		t.Errorf("Unexpected queue rate-limit defaults: %d/%d", cfg.QueueRequestsPerMinute, cfg.QueueBurstSize)
	}
	if cfg.CORSOrigin != "*" {
		t.Errorf("Expected default CORSOrigin='*', got %q", cfg.CORSOrigin)
	}
}

// TestValidate covers required-field checks
func TestValidate(t *testing.T) {
	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional should not error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default dev config should validate: %v", err)
	}

	cfg.PGXNAPIBaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for bad pgxnApiBaseUrl")
	}

	cfg, _ = LoadConfigOptional("")
	cfg.Env = "prod"
	cfg.RedisAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for missing redisAddr in prod")
	}
}
