package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.TrackingTimezone == "" {
		t.Fatalf("expected default tracking timezone")
	}
	if cfg.TrackingCutoff == "" {
		t.Fatalf("expected default tracking cutoff")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TRACKING_TIMEZONE", "UTC")
	t.Setenv("TRACKING_CUTOFF", "17:00")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.TrackingTimezone != "UTC" {
		t.Fatalf("expected override timezone")
	}
	if cfg.TrackingCutoff != "17:00" {
		t.Fatalf("expected override cutoff")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected override log level")
	}
}
