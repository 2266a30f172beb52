// Package buildconfig loads the YAML document describing one depgraph
// build: which persistent store backend to use, what parent layer (if
// any) to inherit facts from, and the ordered list of feature documents
// to add.
package buildconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid wraps every validation failure raised while loading a
// build config, so callers can distinguish a malformed config file from
// an I/O error.
var ErrConfigInvalid = errors.New("invalid build config")

// StoreBackend selects which depgraph.Store implementation a build uses.
type StoreBackend string

const (
	StoreSQLite   StoreBackend = "sqlite"
	StorePostgres StoreBackend = "postgres"
)

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	Backend StoreBackend `yaml:"backend"`

	// SQLitePath is the database file path, used when Backend is sqlite.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// ConnectionEnv names the environment variable holding the postgres
	// connection string, used when Backend is postgres. The connection
	// string itself is never written to the config file.
	ConnectionEnv string `yaml:"connection_env,omitempty"`
}

// ParentConfig describes the parent layer this build inherits facts and
// items from, if any.
type ParentConfig struct {
	// Label identifies the parent layer. `graph build` tags its log lines
	// with it; it is not used to open other layers' graphs.
	Label string `yaml:"label"`

	// FactsSnapshot is the path to the JSON-lines snapshot of the parent
	// layer's scanned filesystem facts.
	FactsSnapshot string `yaml:"facts_snapshot"`
}

// Config is one build's complete configuration: where to persist the
// graph, what parent (if any) to build on top of, and the features to add
// in order.
type Config struct {
	Store StoreConfig `yaml:"store"`

	// Parent is nil for a build with no parent layer (the base of an image
	// chain).
	Parent *ParentConfig `yaml:"parent,omitempty"`

	// Features lists the feature JSON document paths to add, in order.
	Features []string `yaml:"features"`
}

// Load reads and validates a build config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	case StorePostgres:
		if c.Store.ConnectionEnv == "" {
			return errors.New("store.connection_env is required for the postgres backend")
		}
	case "":
		return errors.New("store.backend is required")
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if c.Parent != nil {
		if c.Parent.Label == "" {
			return errors.New("parent.label is required when parent is set")
		}
		if c.Parent.FactsSnapshot == "" {
			return errors.New("parent.facts_snapshot is required when parent is set")
		}
	}

	if len(c.Features) == 0 {
		return errors.New("features must list at least one feature document")
	}

	return nil
}

// ConnectionString resolves the postgres connection string from the
// environment variable named by Store.ConnectionEnv. It is an error to
// call this when Store.Backend is not postgres.
func (c *Config) ConnectionString() (string, error) {
	if c.Store.Backend != StorePostgres {
		return "", fmt.Errorf("%w: connection string only applies to the postgres backend", ErrConfigInvalid)
	}
	v, ok := os.LookupEnv(c.Store.ConnectionEnv)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrConfigInvalid, c.Store.ConnectionEnv)
	}
	return v, nil
}
