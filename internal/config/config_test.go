package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/agenda")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool sizes = %d/%d, want 20/5", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.MigrationsDir != "migrations" {
		t.Errorf("MigrationsDir = %q", cfg.MigrationsDir)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 {
		t.Errorf("rate limit = %v/%d, want 50/100", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if !cfg.TelemetryEnabled {
		t.Error("TelemetryEnabled = false, want true")
	}
	if !cfg.IsDev() {
		t.Error("IsDev() = false, want true")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with empty DATABASE_URL succeeded, want error")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/agenda")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_SIGNING_KEY", "supersecret")
	t.Setenv("DB_MAX_CONNS", "40")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if cfg.DBMaxConns != 40 {
		t.Errorf("DBMaxConns = %d, want 40", cfg.DBMaxConns)
	}
	if cfg.Addr() != ":9090" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "dev mode needs nothing",
			cfg:  Config{Env: "development"},
		},
		{
			name:    "production without auth refused",
			cfg:     Config{Env: "production", RateLimitRPS: 50, RateLimitBurst: 100},
			wantErr: true,
		},
		{
			name: "production with signing key",
			cfg:  Config{Env: "production", AuthSigningKey: "secret", RateLimitRPS: 50, RateLimitBurst: 100},
		},
		{
			name: "production with issuer",
			cfg:  Config{Env: "production", AuthIssuer: "https://sso.example.org", RateLimitRPS: 50, RateLimitBurst: 100},
		},
		{
			name:    "zero rate limit refused",
			cfg:     Config{Env: "production", AuthSigningKey: "secret", RateLimitRPS: 0, RateLimitBurst: 100},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
