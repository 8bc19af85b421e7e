package database

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			modify: func(c *Config) {},
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.Port = 70000 },
			wantErr: "port must be between",
		},
		{
			name:    "missing user",
			modify:  func(c *Config) { c.User = "" },
			wantErr: "user is required",
		},
		{
			name:    "missing dbname",
			modify:  func(c *Config) { c.DBName = "" },
			wantErr: "name is required",
		},
		{
			name:    "invalid ssl mode",
			modify:  func(c *Config) { c.SSLMode = "sometimes" },
			wantErr: "invalid SSL mode",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "idle exceeds open",
			modify:  func(c *Config) { c.MaxIdleConns = 200; c.MaxOpenConns = 100 },
			wantErr: "cannot exceed max open",
		},
		{
			name:    "negative lifetime",
			modify:  func(c *Config) { c.ConnMaxLifetime = -time.Second },
			wantErr: "lifetime must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "vault",
		Password: "secret",
		DBName:   "filevault",
		SSLMode:  "require",
		Timezone: "UTC",
	}

	dsn := cfg.DSN()
	for _, part := range []string{"host=db.internal", "port=5433", "user=vault", "dbname=filevault", "sslmode=require", "TimeZone=UTC"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN() = %q, missing %q", dsn, part)
		}
	}
}
