// Package config defines the pipeline configuration. One Config value is
// constructed at process start and passed by reference into the pipeline;
// nothing in the core reads ambient global state.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root pipeline configuration.
type Config struct {
	// Job names the pipeline run for logs and metric tags.
	Job string `yaml:"job"`

	Sources   Sources   `yaml:"sources"`
	Warehouse Warehouse `yaml:"warehouse"`

	// DateFormats lists accepted source date layouts (Go reference-time
	// form). Empty means the built-in defaults.
	DateFormats []string `yaml:"date_formats"`
}

// Sources configures the three input files.
type Sources struct {
	Users        Source `yaml:"users"`
	Products     Source `yaml:"products"`
	Transactions Source `yaml:"transactions"`
}

// Source configures one input file. Column names are the provider's raw
// headers; they are the contract with the data provider, not with the
// warehouse (the schema builder standardizes them later).
type Source struct {
	Path string `yaml:"path"`

	// Delimiter is a single character; empty means tab.
	Delimiter string `yaml:"delimiter"`

	// Encoding names the source byte encoding; empty means UTF-8.
	Encoding string `yaml:"encoding"`

	// KeyColumns define record identity for deduplication. Empty means the
	// whole row.
	KeyColumns []string `yaml:"key_columns"`

	// DateColumn, if set, is normalized to the canonical timestamp form.
	DateColumn string `yaml:"date_column"`

	// Transaction-only columns.
	AmountColumn       string `yaml:"amount_column"`
	UserColumn         string `yaml:"user_column"`
	SubscriptionColumn string `yaml:"subscription_column"`
}

// DelimiterRune returns the delimiter as a rune, defaulting to tab.
func (s Source) DelimiterRune() rune {
	if s.Delimiter == "" {
		return '\t'
	}
	return []rune(s.Delimiter)[0]
}

// Warehouse configures the sink.
type Warehouse struct {
	// Kind selects a registered storage backend:
	// postgres | sqlite | mysql | mssql.
	Kind string `yaml:"kind"`

	// DSN may reference environment variables ($PGPASSWORD etc); they are
	// expanded at load time so secrets can stay out of the file.
	DSN string `yaml:"dsn"`
}

// Load reads and validates a config file. A path ending in ".enc" is an
// encrypted artifact (see Encrypt/Decrypt); passphrase is required for it
// and ignored otherwise.
func Load(path, passphrase string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".enc") {
		if passphrase == "" {
			return nil, fmt.Errorf("config: %s is encrypted and no passphrase was provided", path)
		}
		raw, err = Decrypt(raw, passphrase)
		if err != nil {
			return nil, fmt.Errorf("config: decrypt %s: %w", path, err)
		}
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse unmarshals and validates a plaintext YAML config.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.Warehouse.DSN = os.ExpandEnv(cfg.Warehouse.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the pipeline cannot run without.
func (c *Config) Validate() error {
	for _, s := range []struct {
		name string
		src  Source
	}{
		{"users", c.Sources.Users},
		{"products", c.Sources.Products},
		{"transactions", c.Sources.Transactions},
	} {
		if s.src.Path == "" {
			return fmt.Errorf("sources.%s.path is required", s.name)
		}
	}

	tx := c.Sources.Transactions
	if tx.AmountColumn == "" {
		return fmt.Errorf("sources.transactions.amount_column is required")
	}
	if tx.UserColumn == "" {
		return fmt.Errorf("sources.transactions.user_column is required")
	}
	if tx.SubscriptionColumn == "" {
		return fmt.Errorf("sources.transactions.subscription_column is required")
	}
	if len(c.Sources.Users.KeyColumns) == 0 {
		return fmt.Errorf("sources.users.key_columns is required")
	}
	if len(c.Sources.Products.KeyColumns) == 0 {
		return fmt.Errorf("sources.products.key_columns is required")
	}
	if len(c.Sources.Transactions.KeyColumns) == 0 {
		return fmt.Errorf("sources.transactions.key_columns is required")
	}

	if c.Warehouse.Kind == "" {
		return fmt.Errorf("warehouse.kind is required")
	}
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	return nil
}
