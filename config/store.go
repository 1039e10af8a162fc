// Package config holds the SDK configuration: user-supplied values layered
// over environment variables, an optional file and embedded defaults.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/xtanion/integration-sdks/pkg/logger"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Store is a read-only view over the merged configuration.
// It is safe for concurrent reads once New has returned.
type Store struct {
	v *viper.Viper
}

type options struct {
	file           string
	envPrefix      string
	embedded       bool
	skipValidation bool
}

// Option configures New.
type Option func(*options)

// WithFile layers a config file (any format viper understands) between the
// embedded defaults and the environment.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithEnvPrefix overrides the environment variable prefix. An empty prefix
// disables environment lookups.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// WithoutDefaults drops the embedded defaults layer.
func WithoutDefaults() Option {
	return func(o *options) { o.embedded = false }
}

// WithoutValidation skips the configKeys check in New.
func WithoutValidation() Option {
	return func(o *options) { o.skipValidation = true }
}

// New merges values over the environment, the optional file and the
// embedded defaults, then validates every key listed under configKeys.
// Keys in values may be dotted ("log.level") or nested maps.
func New(values map[string]any, opts ...Option) (*Store, error) {
	o := options{envPrefix: EnvPrefix, embedded: true}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()

	if o.embedded {
		d := viper.New()
		d.SetConfigType("yaml")
		if err := d.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
			return nil, fmt.Errorf("config: read embedded defaults: %w", err)
		}
		for _, k := range d.AllKeys() {
			v.SetDefault(k, d.Get(k))
		}
	}

	if o.file != "" {
		v.SetConfigFile(o.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", o.file, err)
		}
	}

	if o.envPrefix != "" {
		v.SetEnvPrefix(o.envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	for k, val := range flatten("", values) {
		v.Set(k, val)
	}

	s := &Store{v: v}
	if !o.skipValidation {
		if err := s.Validate(s.RequiredKeys()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Validate checks keys in order and returns a *ConfigError for the first key
// that is absent or resolves to an empty value. The store is not modified.
func (s *Store) Validate(requiredKeys []string) error {
	if s == nil || s.v == nil {
		return ErrNilConfig
	}
	for _, key := range requiredKeys {
		if !s.v.IsSet(key) {
			return &ConfigError{Kind: MissingKey, Key: key}
		}
		if isEmpty(s.v.Get(key)) {
			return &ConfigError{Kind: EmptyValue, Key: key}
		}
	}
	return nil
}

// isEmpty reports whether a string, list or map value has no content. A
// string of only whitespace is empty. Scalars such as booleans and numbers
// always count as present.
func isEmpty(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return validation.Validate(strings.TrimSpace(v), validation.Required) != nil
	case []any, []string, map[string]any:
		return validation.Validate(val, validation.Required) != nil
	default:
		return false
	}
}

// flatten turns nested maps into dotted keys. Non-map values are kept as is.
func flatten(prefix string, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, val := range values {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// RequiredKeys returns the configKeys list.
func (s *Store) RequiredKeys() []string {
	return s.v.GetStringSlice(KeyConfigKeys)
}

// Has reports whether key resolves to any value, including an empty one.
func (s *Store) Has(key string) bool {
	return s.v.IsSet(key)
}

func (s *Store) GetString(key string) string { return s.v.GetString(key) }

func (s *Store) GetBool(key string) bool { return s.v.GetBool(key) }

func (s *Store) GetDuration(key string) time.Duration { return s.v.GetDuration(key) }

// Settings returns a copy of every resolved setting as a nested map.
func (s *Store) Settings() map[string]any {
	return s.v.AllSettings()
}

func (s *Store) ProtocolBasePath() string { return s.v.GetString(KeyProtocolBasePath) }

func (s *Store) ParticipantCode() string { return s.v.GetString(KeyParticipantCode) }

func (s *Store) AuthBasePath() string { return s.v.GetString(KeyAuthBasePath) }

func (s *Store) Username() string { return s.v.GetString(KeyUsername) }

func (s *Store) Password() string { return s.v.GetString(KeyPassword) }

func (s *Store) PrivateKey() string { return s.v.GetString(KeyEncryptionPrivateKey) }

func (s *Store) HCXIGBasePath() string { return s.v.GetString(KeyHCXIGBasePath) }

func (s *Store) NRCESIGBasePath() string { return s.v.GetString(KeyNRCESIGBasePath) }

func (s *Store) FHIRValidationEnabled() bool { return s.v.GetBool(KeyFHIRValidationEnabled) }

func (s *Store) IncomingRequestClass() string { return s.v.GetString(KeyIncomingRequestClass) }

func (s *Store) OutgoingRequestClass() string { return s.v.GetString(KeyOutgoingRequestClass) }

// WorkDir is where definition bundles are downloaded and extracted.
// It falls back to the process working directory.
func (s *Store) WorkDir() string {
	if dir := s.v.GetString(KeyWorkDir); dir != "" {
		return dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return os.TempDir()
}

// FetchTimeout bounds each bundle download. Zero means the fetcher default.
func (s *Store) FetchTimeout() time.Duration {
	return s.v.GetDuration(KeyFetchTimeout)
}

// LogConfig decodes the log section over logger.DefaultConfig.
func (s *Store) LogConfig() (logger.Config, error) {
	cfg := logger.DefaultConfig()
	if !s.v.IsSet(KeyLog) {
		return cfg, nil
	}
	if err := s.v.UnmarshalKey(KeyLog, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", KeyLog, err)
	}
	return cfg, nil
}
