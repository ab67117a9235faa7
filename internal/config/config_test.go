package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetenv(t, "APP_ENV", "STORAGE", "DATABASE_URL", "MAX_PAGE_SIZE", "JWT_ACCESS_TTL_MINUTES", "JWT_REFRESH_TTL_DAYS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Storage != StoragePostgres {
		t.Fatalf("got storage %q", cfg.Storage)
	}
	if cfg.MaxPageSize != 100 {
		t.Fatalf("got max page size %d", cfg.MaxPageSize)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Fatalf("got access ttl %v", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("got refresh ttl %v", cfg.RefreshTTL())
	}
}

func TestLoad_BuildsDBURLFromParts(t *testing.T) {
	unsetenv(t, "DATABASE_URL")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_NAME", "shop")
	t.Setenv("DB_SSLMODE", "require")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	want := "postgres://u:p@db:6543/shop?sslmode=require"
	if cfg.DBURL != want {
		t.Fatalf("got %q, want %q", cfg.DBURL, want)
	}
}

func TestLoad_DatabaseURLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x@y/z")
	t.Setenv("DB_HOST", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DBURL != "postgres://x@y/z" {
		t.Fatalf("got %q", cfg.DBURL)
	}
}

func TestLoad_StorageNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"memory", StorageMemory},
		{" MEMORY ", StorageMemory},
		{"postgres", StoragePostgres},
		{"sqlite", StoragePostgres},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Setenv("STORAGE", tt.in)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if cfg.Storage != tt.want {
				t.Fatalf("got %q, want %q", cfg.Storage, tt.want)
			}
		})
	}
}

func TestLoad_NonPositiveMaxPageSizeFallsBack(t *testing.T) {
	t.Setenv("MAX_PAGE_SIZE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MaxPageSize != 100 {
		t.Fatalf("got %d", cfg.MaxPageSize)
	}
}

func TestLoad_JWTSecretOutsideDev(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{name: "dev_falls_back_to_builtin", env: EnvDev, secret: "", wantErr: false},
		{name: "prod_unset", env: "prod", secret: "", wantErr: true},
		{name: "prod_builtin", env: "prod", secret: DevJWTSecret, wantErr: true},
		{name: "prod_real_secret", env: "prod", secret: "s3cr3t-from-vault", wantErr: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			if tt.secret == "" {
				unsetenv(t, "JWT_SECRET")
			} else {
				t.Setenv("JWT_SECRET", tt.secret)
			}

			cfg, err := Load()
			if tt.wantErr {
				if !errors.Is(err, ErrInsecureJWTSecret) {
					t.Fatalf("got %v, want ErrInsecureJWTSecret", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if cfg.JWTSecret == "" {
				t.Fatalf("expected a signing secret")
			}
			if tt.secret != "" && cfg.JWTSecret != tt.secret {
				t.Fatalf("got secret %q, want %q", cfg.JWTSecret, tt.secret)
			}
		})
	}
}
