package config

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("NOTARY_TIMEOUT_MS", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("AUTH_DEV_MODE", "")
	t.Setenv("AUTH_NONCE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverPostgres)
	}
	if cfg.NotaryTimeout != 5*time.Second {
		t.Errorf("NotaryTimeout = %v, want 5s", cfg.NotaryTimeout)
	}
	if cfg.AuthDevMode {
		t.Error("AuthDevMode must default to false")
	}
	if cfg.AuthNonceTTL != 5*time.Minute {
		t.Errorf("AuthNonceTTL = %v, want 5m", cfg.AuthNonceTTL)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d, want 120", cfg.RateLimitPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("NOTARY_TIMEOUT_MS", "250")
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")
	t.Setenv("AUTH_DEV_MODE", "TRUE")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
	if cfg.NotaryTimeout != 250*time.Millisecond {
		t.Errorf("NotaryTimeout = %v, want 250ms", cfg.NotaryTimeout)
	}
	if !cfg.AuthDevMode {
		t.Error("AuthDevMode = false, want true")
	}
	if cfg.JWTExpiration != 24*time.Hour {
		t.Errorf("JWTExpiration = %v, want fallback 24h", cfg.JWTExpiration)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }, true},
		{"postgres ignores notary path", func(c *Config) { c.NotaryPath = " " }, false},
		{"memory needs notary path", func(c *Config) { c.StoreDriver = StoreDriverMemory; c.NotaryPath = " " }, true},
		{"zero timeout", func(c *Config) { c.NotaryTimeout = 0 }, true},
		{"memory driver", func(c *Config) { c.StoreDriver = StoreDriverMemory }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				StoreDriver:   StoreDriverPostgres,
				NotaryPath:    "./data/notary",
				NotaryTimeout: time.Second,
				JWTSecret:     "secret",
			}
			tt.modify(c)
			err := c.Validate(zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
