package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "AGRAPH_"

// sections are the top-level keys holding nested settings. Environment
// variables split on the first underscore only for these, so
// AGRAPH_CHECKPOINT_SAVE_RNG maps to checkpoint.save_rng.
var sections = map[string]bool{"checkpoint": true, "model": true, "train": true}

// Loader merges configuration sources. Later sources override earlier ones:
// defaults, then the YAML file, then the environment, then LoadMap calls.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a loader seeded with Defaults.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	// confmap never fails to read.
	_ = l.k.Load(confmap.Provider(Defaults(), "."), nil)
	return l
}

// Load reads the file and the environment.
func (l *Loader) Load() error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	return l.LoadEnv()
}

// LoadFile merges a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return errors.Wrapf(err, "load config file %s", path)
	}
	return nil
}

// LoadEnv merges environment variables carrying the prefix.
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", l.envKey)
	if err := l.k.Load(provider, nil); err != nil {
		return errors.Wrap(err, "load env")
	}
	return nil
}

func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	if section, rest, ok := strings.Cut(s, "_"); ok && sections[section] {
		return section + "." + rest
	}
	return s
}

// LoadMap merges explicit overrides, e.g. from CLI flags. Keys are flat and
// dotted ("checkpoint.policy") or nested maps.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(confmap.Provider(data, "."), nil); err != nil {
		return errors.Wrap(err, "load map")
	}
	return nil
}

// Config unmarshals and validates the merged configuration.
func (l *Loader) Config() (*Config, error) {
	var c Config
	if err := l.k.Unmarshal("", &c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}
	return &c, nil
}

// Get returns the raw merged value of key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// Keys returns every merged key.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
