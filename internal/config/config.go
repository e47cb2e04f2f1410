package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/selector/internal/errors"
	"github.com/vango-dev/selector/pkg/selector"
)

const (
	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultInterval is the default poll interval.
	DefaultInterval = 5 * time.Second

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "selectd"

	// DefaultSQLDriver is the database/sql driver used when none is set.
	DefaultSQLDriver = "sqlite"
)

// FileNames are the config file names searched by Find, in order.
var FileNames = []string{"selectd.yaml", "selectd.yml", "selectd.json"}

// Source kinds.
const (
	SourceFile = "file"
	SourceS3   = "s3"
	SourceSQL  = "sql"
)

// Selection equality modes.
const (
	EqualDeep     = "deep"
	EqualIdentity = "identity"
)

// Duration is a time.Duration written as a string like "5s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete selectd configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty" env:"SELECTD_LISTEN"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" env:"SELECTD_LOG_LEVEL"`

	// Source describes the backend the snapshot is polled from.
	Source SourceConfig `json:"source" yaml:"source"`

	// Selector describes the projection served to clients.
	Selector SelectorConfig `json:"selector" yaml:"selector"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SourceConfig configures the polled backend.
type SourceConfig struct {
	// Kind is file, s3 or sql.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty" env:"SELECTD_SOURCE_KIND"`

	// Interval is the poll interval.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty" env:"SELECTD_SOURCE_INTERVAL"`

	// Path is the JSON file for kind=file.
	Path string `json:"path,omitempty" yaml:"path,omitempty" env:"SELECTD_SOURCE_PATH"`

	// Bucket, Key, Region and Endpoint locate the JSON object for kind=s3.
	Bucket       string `json:"bucket,omitempty" yaml:"bucket,omitempty" env:"SELECTD_S3_BUCKET"`
	Key          string `json:"key,omitempty" yaml:"key,omitempty" env:"SELECTD_S3_KEY"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty" env:"SELECTD_S3_REGION"`
	Endpoint     string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"SELECTD_S3_ENDPOINT"`
	UsePathStyle bool   `json:"usePathStyle,omitempty" yaml:"usePathStyle,omitempty" env:"SELECTD_S3_USE_PATH_STYLE"`

	// Credentials are read from the environment only.
	AccessKeyID     string `json:"-" yaml:"-" env:"SELECTD_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" yaml:"-" env:"SELECTD_S3_SECRET_ACCESS_KEY"`

	// Driver, DSN and Query configure kind=sql. Query must return a single
	// column holding a JSON document. VersionQuery is optional.
	Driver       string `json:"driver,omitempty" yaml:"driver,omitempty" env:"SELECTD_SQL_DRIVER"`
	DSN          string `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"SELECTD_SQL_DSN"`
	Query        string `json:"query,omitempty" yaml:"query,omitempty" env:"SELECTD_SQL_QUERY"`
	VersionQuery string `json:"versionQuery,omitempty" yaml:"versionQuery,omitempty" env:"SELECTD_SQL_VERSION_QUERY"`
}

// SelectorConfig configures the served selection.
type SelectorConfig struct {
	// Path is a gjson path evaluated against the snapshot document.
	Path string `json:"path,omitempty" yaml:"path,omitempty" env:"SELECTD_SELECTOR_PATH"`

	// Async evaluates the path off the notifying goroutine.
	Async bool `json:"async,omitempty" yaml:"async,omitempty" env:"SELECTD_SELECTOR_ASYNC"`

	// Equal is deep (keep equal selections) or identity.
	Equal string `json:"equal,omitempty" yaml:"equal,omitempty" env:"SELECTD_SELECTOR_EQUAL"`

	// Overlap is latest-wins or settle-order.
	Overlap string `json:"overlap,omitempty" yaml:"overlap,omitempty" env:"SELECTD_SELECTOR_OVERLAP"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	// Enabled serves /metrics.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty" env:"SELECTD_METRICS_ENABLED"`

	// Namespace is the Prometheus namespace.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty" env:"SELECTD_METRICS_NAMESPACE"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Listen:   DefaultListen,
		LogLevel: "info",
		Source: SourceConfig{
			Kind:     SourceFile,
			Interval: Duration(DefaultInterval),
			Driver:   DefaultSQLDriver,
		},
		Selector: SelectorConfig{
			Path:    "@this",
			Equal:   EqualDeep,
			Overlap: selector.OverlapLatestWins.String(),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
	}
}

// Find returns the first config file from FileNames present in dir.
func Find(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Load reads configuration from path and applies the environment.
// An empty path searches the working directory and falls back to defaults
// when no file is present.
func Load(path string) (*Config, error) {
	if path == "" {
		found, ok := Find(".")
		if !ok {
			cfg := New()
			if err := cfg.ApplyEnv(); err != nil {
				return nil, err
			}
			cfg.applyDefaults()
			return cfg, nil
		}
		path = found
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads configuration from a JSON or YAML file. The format is
// chosen by extension. The environment is not applied.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("S100").
				WithDetail("No config file at " + path).
				WithSuggestion("Create selectd.yaml or pass --config")
		}
		return nil, errors.New("S101").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("S101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid " + formatName(path))
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv overlays SELECTD_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.New("S102").Wrap(err)
	}
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Interval returns the poll interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Source.Interval)
}

// Overlap returns the configured overlap policy.
func (c *Config) Overlap() selector.OverlapPolicy {
	if c.Selector.Overlap == selector.OverlapSettleOrder.String() {
		return selector.OverlapSettleOrder
	}
	return selector.OverlapLatestWins
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceFile
	}
	if c.Source.Interval == 0 {
		c.Source.Interval = Duration(DefaultInterval)
	}
	if c.Source.Driver == "" {
		c.Source.Driver = DefaultSQLDriver
	}
	if c.Selector.Path == "" {
		c.Selector.Path = "@this"
	}
	if c.Selector.Equal == "" {
		c.Selector.Equal = EqualDeep
	}
	if c.Selector.Overlap == "" {
		c.Selector.Overlap = selector.OverlapLatestWins.String()
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Source.Interval < 0 {
		return invalid("source.interval must be positive", "Use a duration like 5s")
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return invalid("source.path is required for kind=file", "Set source.path or SELECTD_SOURCE_PATH")
		}
	case SourceS3:
		if c.Source.Bucket == "" || c.Source.Key == "" {
			return invalid("source.bucket and source.key are required for kind=s3", "Set SELECTD_S3_BUCKET and SELECTD_S3_KEY")
		}
	case SourceSQL:
		if c.Source.DSN == "" || c.Source.Query == "" {
			return invalid("source.dsn and source.query are required for kind=sql", "Set SELECTD_SQL_DSN and SELECTD_SQL_QUERY")
		}
	default:
		return errors.New("S120").
			WithDetail("Got source.kind " + quote(c.Source.Kind)).
			WithSuggestion("Use file, s3 or sql")
	}

	switch c.Selector.Equal {
	case EqualDeep, EqualIdentity:
	default:
		return invalid("selector.equal must be deep or identity", "")
	}

	switch c.Selector.Overlap {
	case selector.OverlapLatestWins.String(), selector.OverlapSettleOrder.String():
	default:
		return invalid("selector.overlap must be latest-wins or settle-order", "")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logLevel must be debug, info, warn or error", "")
	}
	return nil
}

func invalid(detail, suggestion string) error {
	e := errors.New("S103").WithDetail(detail)
	if suggestion != "" {
		e = e.WithSuggestion(suggestion)
	}
	return e
}

func quote(s string) string {
	return `"` + s + `"`
}

func formatName(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "JSON"
	}
	return "YAML"
}
