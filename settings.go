package riverconf

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultQueueWorkers = 100
)

// Settings holds process-level configuration shared by every service built
// in this process. Embed it in your app config for env parsing, or load it
// directly with [LoadSettings].
type Settings struct {
	// IdentityKeys are the public request-identity keys forwarded on the
	// service descriptor. The ingress uses them to authenticate incoming
	// requests; they are never interpreted here.
	IdentityKeys []string `env:"RIVERCONF_IDENTITY_KEYS" envSeparator:"," yaml:"identity_keys,omitempty"`

	// DatabaseURL is the Postgres connection string for the job store.
	DatabaseURL string `env:"DATABASE_URL" yaml:"database_url,omitempty"`

	// DefaultQueue overrides the queue jobs are dispatched to when no
	// queue is named. Defaults to the service name.
	DefaultQueue string `env:"RIVERCONF_DEFAULT_QUEUE" yaml:"default_queue,omitempty"`

	// MaxWorkers is the default worker count per queue. Defaults to 100.
	MaxWorkers int `env:"RIVERCONF_MAX_WORKERS" envDefault:"100" yaml:"max_workers,omitempty"`
}

// Validate checks the settings for invalid values.
func (s Settings) Validate() error {
	if s.MaxWorkers < 0 {
		return fmt.Errorf("%w: max workers must not be negative", ErrInvalidOptions)
	}
	for _, key := range s.IdentityKeys {
		if key == "" {
			return fmt.Errorf("%w: identity keys must not be empty", ErrInvalidOptions)
		}
	}
	return nil
}

// LoadSettings loads settings from environment variables.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("riverconf: parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettingsFile loads settings from a YAML file, then overlays
// environment variables on top. Only variables actually present in the
// environment override file values; values absent from both fall back to
// the same defaults the env loader applies.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("riverconf: read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("riverconf: parse settings: %w", err)
	}

	// env.Parse applies envDefault values unconditionally, which would
	// clobber file-provided fields, so the overlay is per-variable.
	var overlay Settings
	if err := env.Parse(&overlay); err != nil {
		return Settings{}, fmt.Errorf("riverconf: parse env: %w", err)
	}
	if _, ok := os.LookupEnv("RIVERCONF_IDENTITY_KEYS"); ok {
		s.IdentityKeys = overlay.IdentityKeys
	}
	if _, ok := os.LookupEnv("DATABASE_URL"); ok {
		s.DatabaseURL = overlay.DatabaseURL
	}
	if _, ok := os.LookupEnv("RIVERCONF_DEFAULT_QUEUE"); ok {
		s.DefaultQueue = overlay.DefaultQueue
	}
	if _, ok := os.LookupEnv("RIVERCONF_MAX_WORKERS"); ok {
		s.MaxWorkers = overlay.MaxWorkers
	}

	if s.MaxWorkers == 0 {
		s.MaxWorkers = defaultQueueWorkers
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
