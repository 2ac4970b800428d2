// Package config holds the settings shared by every gcs-upload invocation:
// where to upload by default, which credentials to authenticate with and how
// the uploader behaves. Settings come from an optional YAML file; command-line
// flags override them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBucket is used when no bucket is named on the command line or in
	// the config file.
	DefaultBucket = "automationstationddata"

	// DefaultCredentialsPath is the service-account key file looked up in the
	// working directory when none is given.
	DefaultCredentialsPath = "upload.json"

	// DefaultPattern matches every file.
	DefaultPattern = "*"

	DefaultMaxResults  = 100
	DefaultConcurrency = 1
)

// Config is the file-level configuration.
type Config struct {
	Bucket      string `yaml:"bucket,omitempty"`
	Credentials string `yaml:"credentials,omitempty"`

	// Project overrides the project id read from the credentials file. It is
	// only used to list buckets.
	Project string `yaml:"project,omitempty"`

	// Concurrency bounds the number of files uploaded at once by a directory
	// upload. 1 uploads sequentially.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxResults bounds blob listings.
	MaxResults int `yaml:"max_results,omitempty"`

	// LocalRoot, when set, writes objects beneath this directory instead of
	// to Cloud Storage.
	LocalRoot string `yaml:"local_root,omitempty"`

	// Metadata is attached to every uploaded object.
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a configuration file from the given path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Relative credentials paths are resolved against the config file.
	if cfg.Credentials != "" && !filepath.IsAbs(cfg.Credentials) {
		cfg.Credentials = filepath.Join(filepath.Dir(path), cfg.Credentials)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}

	if c.Credentials == "" {
		c.Credentials = DefaultCredentialsPath
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be at least 1, got %d", c.MaxResults)
	}

	return nil
}
