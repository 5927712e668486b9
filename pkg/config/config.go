// Package config provides configuration file support for dotlock.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jvs-project/dotlock/pkg/errclass"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/model"
)

// EnvPath names the environment variable consulted for the config path.
const EnvPath = "DOTLOCK_CONFIG"

// Config represents the dotlock configuration.
type Config struct {
	Lock    LockConfig    `yaml:"lock" json:"lock"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Audit   AuditConfig   `yaml:"audit" json:"audit"`
}

// LockConfig configures lock timings.
type LockConfig struct {
	ValidLockAge Duration `yaml:"valid_lock_age" json:"valid_lock_age"`
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval"`
	HijackDelay  Duration `yaml:"hijack_delay" json:"hijack_delay"`
	Watch        bool     `yaml:"watch" json:"watch"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json, text
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr,omitempty"`
}

// AuditConfig configures the lock event journal.
type AuditConfig struct {
	Path string `yaml:"path" json:"path,omitempty"`
}

// Duration is a time.Duration written as "15s" in YAML. Bare integers are
// read as seconds.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Default returns the default configuration.
func Default() *Config {
	p := model.DefaultLockPolicy()
	return &Config{
		Lock: LockConfig{
			ValidLockAge: Duration(p.ValidLockAge),
			PollInterval: Duration(p.PollInterval),
			HijackDelay:  Duration(p.HijackDelay),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the per-user config location, or "" if the platform
// has none.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dotlock", "config.yaml")
}

// ResolvePath picks the config file: the explicit flag value, then
// $DOTLOCK_CONFIG, then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath()
}

// Load loads configuration from path.
// Returns default config if path is empty or the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Policy converts the lock section into a LockPolicy.
func (c *Config) Policy() model.LockPolicy {
	return model.LockPolicy{
		ValidLockAge: time.Duration(c.Lock.ValidLockAge),
		PollInterval: time.Duration(c.Lock.PollInterval),
		HijackDelay:  time.Duration(c.Lock.HijackDelay),
	}
}

// Validate checks the lock timings and logging settings.
func (c *Config) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("lock: %v", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging: %v", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging: %v", err)
	}
	return nil
}

// Logger builds a logger from the logging section. Call Validate first.
func (c *Config) Logger(w io.Writer) *logging.Logger {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		format = logging.FormatText
	}
	l := logging.NewLogger(level)
	l.SetFormat(format)
	l.SetOutput(w)
	return l
}

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

func durationField(ptr func(*Config) *Duration) field {
	return field{
		get: func(c *Config) string { return time.Duration(*ptr(c)).String() },
		set: func(c *Config, v string) error {
			d, err := parseDuration(v)
			if err != nil {
				return err
			}
			*ptr(c) = Duration(d)
			return nil
		},
	}
}

func stringField(ptr func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error { *ptr(c) = v; return nil },
	}
}

var fields = map[string]field{
	"lock.valid_lock_age": durationField(func(c *Config) *Duration { return &c.Lock.ValidLockAge }),
	"lock.poll_interval":  durationField(func(c *Config) *Duration { return &c.Lock.PollInterval }),
	"lock.hijack_delay":   durationField(func(c *Config) *Duration { return &c.Lock.HijackDelay }),
	"lock.watch": {
		get: func(c *Config) string { return strconv.FormatBool(c.Lock.Watch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid bool %q", v)
			}
			c.Lock.Watch = b
			return nil
		},
	},
	"logging.level":  stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.format": stringField(func(c *Config) *string { return &c.Logging.Format }),
	"metrics.addr":   stringField(func(c *Config) *string { return &c.Metrics.Addr }),
	"audit.path":     stringField(func(c *Config) *string { return &c.Audit.Path }),
}

// Keys lists the settable configuration keys.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dotted key such as "lock.poll_interval".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
	}
	return f.get(c), nil
}

// Set assigns a dotted key and revalidates the configuration. On failure
// the configuration is left unchanged.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("%s: %v", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
