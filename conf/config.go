// Package conf loads and validates the server's declarative YAML
// configuration: listen address, request timeout, the LDAP connection
// pool/retry policy, resource-mapping file paths and the paged-search
// candidate cap (§6, §9).
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"
)

// LdapConfig names the directory this server's backend talks to and how
// its connection pool behaves.
type LdapConfig struct {
	URL          string `yaml:"url" validate:"required"`
	BindDN       string `yaml:"bind_dn" validate:"required"`
	BindPassword string `yaml:"bind_password" validate:"required"`
	BaseDN       string `yaml:"base_dn" validate:"required"`

	PoolSize       int `yaml:"pool_size" validate:"min=1"`
	MaxRetries     int `yaml:"max_retries" validate:"min=0"`
	AssumeSortCtrl bool `yaml:"assume_sort_control"`

	// MaxSortCandidates bounds the in-memory candidate set the backend
	// will buffer when falling back from a server-side sort to client-side
	// sorting (§9 open question). Required to avoid unbounded buffering.
	MaxSortCandidates int `yaml:"max_sort_candidates" validate:"min=1"`
}

// ServerConfig is the top-level configuration of a scimd server process.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address" validate:"required"`

	// RequestTimeout bounds every HTTP exchange (§5); the deadline is
	// threaded into the context passed to the Backend.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"min=1"`

	// DefaultCount/MaxCount bound the page size negotiated by ?count= (§4.4).
	DefaultCount int `yaml:"default_count" validate:"min=0"`
	MaxCount     int `yaml:"max_count" validate:"min=1"`

	SchemaDir      string `yaml:"schema_dir"`
	ResourceTypeDir string `yaml:"resourcetype_dir"`
	LdapMapDir     string `yaml:"ldapmap_dir" validate:"required"`

	Ldap LdapConfig `yaml:"ldap" validate:"required"`

	MetricsAddress string `yaml:"metrics_address"`
}

// RequestTimeout renders RequestTimeoutSeconds as a time.Duration.
func (sc *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(sc.RequestTimeoutSeconds) * time.Second
}

// Load reads, parses and validates a YAML server configuration file.
func Load(path string) (*ServerConfig, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns a ServerConfig with the non-required fields set to the
// values a freshly installed server should use.
func Default() *ServerConfig {
	return &ServerConfig{
		ListenAddress:         "0.0.0.0:8080",
		RequestTimeoutSeconds: 30,
		DefaultCount:          100,
		MaxCount:              200,
		SchemaDir:             "",
		ResourceTypeDir:       "",
		Ldap: LdapConfig{
			PoolSize:          8,
			MaxRetries:        3,
			MaxSortCandidates: 10000,
		},
	}
}
