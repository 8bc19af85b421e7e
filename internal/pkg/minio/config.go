package minio

import (
	"errors"
	"time"
)

// Config represents the configuration for the MinIO client
type Config struct {
	// Endpoint is the S3-compatible object storage endpoint
	// Examples: "play.min.io", "s3.amazonaws.com", "localhost:9000"
	Endpoint string `mapstructure:"endpoint"`

	// AccessKeyID is the access key for authentication
	AccessKeyID string `mapstructure:"accesskeyid"`

	// SecretAccessKey is the secret key for authentication
	SecretAccessKey string `mapstructure:"secretaccesskey"`

	// Region is the region of the object storage (optional)
	Region string `mapstructure:"region"`

	// UseSSL determines whether to use HTTPS (true) or HTTP (false)
	UseSSL bool `mapstructure:"usessl"`

	// Bucket is the bucket holding blob objects
	Bucket string `mapstructure:"bucket"`

	// CreateBucket creates the bucket at startup when it does not exist
	CreateBucket bool `mapstructure:"createbucket"`

	// ConnectTimeout is the timeout for the startup connectivity check
	// Default: 10 seconds
	ConnectTimeout time.Duration `mapstructure:"connecttimeout"`

	// TraceEnabled enables HTTP request/response tracing for debugging
	TraceEnabled bool `mapstructure:"traceenabled"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}

	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}

	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}

	if c.Bucket == "" {
		return errors.New("minio: bucket is required")
	}

	return nil
}

// SetDefaults sets default values for unspecified configuration fields
func (c *Config) SetDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:9000",
		Bucket:         "filevault",
		UseSSL:         false,
		CreateBucket:   true,
		ConnectTimeout: 10 * time.Second,
	}
}
