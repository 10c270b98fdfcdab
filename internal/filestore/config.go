package filestore

import "fmt"

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO  Provider = "minio"
	ProviderS3     Provider = "s3"
	ProviderMemory Provider = "memory"
)

// Config holds all settings needed to connect to an object storage backend.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider `yaml:"provider" envconfig:"PROVIDER"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO. Leave empty for AWS S3.
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"use_ssl" envconfig:"USE_SSL"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region" envconfig:"REGION"`

	// Bucket holds every user namespace.
	Bucket string `yaml:"bucket" envconfig:"BUCKET"`
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
		Bucket:    "user-files",
	}
}

// Validate checks the fields the selected provider needs.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	switch c.Provider {
	case ProviderMemory:
		return nil
	case ProviderMinIO:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for provider %q", c.Provider)
		}
	case ProviderS3:
	default:
		return fmt.Errorf("unknown storage provider %q", c.Provider)
	}

	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("access key and secret key are required for provider %q", c.Provider)
	}
	return nil
}
