package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("server port = %q, want 8080", cfg.ServerPort)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Errorf("query timeout = %v, want 5s", cfg.QueryTimeout)
	}
	if cfg.RealtimeDebounce != 250*time.Millisecond {
		t.Errorf("realtime debounce = %v, want 250ms", cfg.RealtimeDebounce)
	}
	if cfg.AccessTokenTTL() != 15*time.Minute {
		t.Errorf("access ttl = %v, want 15m", cfg.AccessTokenTTL())
	}
	if cfg.StorageConfigured() {
		t.Error("storage should not be configured without R2 settings")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("QUERY_TIMEOUT", "2s")
	t.Setenv("WORKER_COUNT", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("server port = %q, want 9090", cfg.ServerPort)
	}
	if cfg.QueryTimeout != 2*time.Second {
		t.Errorf("query timeout = %v, want 2s", cfg.QueryTimeout)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("worker count = %d, want 4", cfg.WorkerCount)
	}
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when JWT_SECRET is empty")
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "require"}
	want := "host=db user=u password=p dbname=n port=5432 sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
}
