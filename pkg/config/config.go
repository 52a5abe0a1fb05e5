// Package config loads databridge settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ghodss/yaml"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "databridge.yaml"

// Environment variables that override the file.
const (
	EnvAPIURL  = "DATABRIDGE_API_URL"
	EnvTimeout = "DATABRIDGE_TIMEOUT"
)

// Config is the complete configuration.
type Config struct {
	APIURL  string        `json:"apiUrl"`
	Timeout Duration      `json:"timeout"`
	Toast   ToastConfig   `json:"toast"`
	Backend BackendConfig `json:"backend"`
}

// ToastConfig controls how long notifications stay visible.
type ToastConfig struct {
	Life     Duration `json:"life"`
	WarnLife Duration `json:"warnLife"`
}

// BackendConfig configures the reference backend started by "serve".
type BackendConfig struct {
	Addr        string   `json:"addr"`
	Store       string   `json:"store"`
	Departments []string `json:"departments"`
	MaxConns    int32    `json:"maxConns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:  "http://localhost:5071/api",
		Timeout: Duration(30 * time.Second),
		Toast: ToastConfig{
			Life:     Duration(3 * time.Second),
			WarnLife: Duration(4 * time.Second),
		},
		Backend: BackendConfig{
			Addr:        ":5071",
			Store:       "memory",
			Departments: []string{"CSE", "ECE", "EEE", "IT", "MECH", "CIVIL"},
			MaxConns:    10,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path and then the
// environment. An empty path reads DefaultFile if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		c.Timeout = Duration(d)
	}
	return nil
}

// Validate checks the client settings.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Toast.Life <= 0 || c.Toast.WarnLife <= 0 {
		return errors.New("toast lifetimes must be positive")
	}
	return nil
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(time.Duration(ms * float64(time.Millisecond)))
	return nil
}
