package minio

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				Endpoint:        "localhost:9000",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
				Bucket:          "filevault",
			},
			wantErr: false,
		},
		{
			name: "missing endpoint",
			cfg: &Config{
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
				Bucket:          "filevault",
			},
			wantErr: true,
		},
		{
			name: "missing access key",
			cfg: &Config{
				Endpoint:        "localhost:9000",
				SecretAccessKey: "minioadmin",
				Bucket:          "filevault",
			},
			wantErr: true,
		},
		{
			name: "missing secret key",
			cfg: &Config{
				Endpoint:    "localhost:9000",
				AccessKeyID: "minioadmin",
				Bucket:      "filevault",
			},
			wantErr: true,
		},
		{
			name: "missing bucket",
			cfg: &Config{
				Endpoint:        "localhost:9000",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
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

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Bucket:          "filevault",
	}

	cfg.SetDefaults()

	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, 10*time.Second)
	}
}

func TestNewClientInvalidConfig(t *testing.T) {
	if _, err := NewClient(nil, nil); err == nil {
		t.Error("NewClient(nil) expected error, got nil")
	}

	if _, err := NewClient(&Config{}, nil); err == nil {
		t.Error("NewClient(empty config) expected error, got nil")
	}
}
