// Package config loads the pipeline configuration: where each dataset comes
// from, which databases to read from and publish to, and runtime knobs.
//
// Credentials are never compiled in. A config file references them as
// ${VAR} placeholders, which are expanded from the process environment after
// an optional .env file has been loaded.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root pipeline configuration.
type Config struct {
	Job string `json:"job" yaml:"job"`

	// Sources maps dataset name (e.g. "enrollee") to where it is loaded from.
	Sources map[string]SourceSpec `json:"sources" yaml:"sources" validate:"required,min=1,dive"`

	// SourceDB is the database relational sources are read from.
	SourceDB DBConfig `json:"source_db" yaml:"source_db"`

	// Sink is the database the star schema is published to.
	Sink DBConfig `json:"sink" yaml:"sink"`

	Google   GoogleConfig   `json:"google" yaml:"google"`
	Runtime  RuntimeConfig  `json:"runtime" yaml:"runtime"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
}

// SourceSpec describes one dataset's transport.
type SourceSpec struct {
	// Kind: "file" (path, file:// or http(s):// URL), "sql", "html", "gsheet".
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=file sql html gsheet"`

	// Location is the path or URL for file and html sources.
	Location string `json:"location" yaml:"location" validate:"required_if=Kind file,required_if=Kind html"`

	// Format overrides extension-based inference for file sources.
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=csv excel xlsx xls spreadsheet json"`

	// Database overrides SourceDB.Name for sql sources.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty" validate:"required_if=Kind sql"`

	// Selector picks the table element on an html page. Empty means the first <table>.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// SpreadsheetID and Range address a Google Sheet.
	SpreadsheetID string `json:"spreadsheet_id,omitempty" yaml:"spreadsheet_id,omitempty" validate:"required_if=Kind gsheet"`
	Range         string `json:"range,omitempty" yaml:"range,omitempty"`

	// Options are passed to the parser (comma, header_map, sheet, encoding, ...).
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// DBConfig describes a database connection.
type DBConfig struct {
	// Kind: "mysql", "postgres", "mssql", "sqlite".
	Kind     string            `json:"kind" yaml:"kind" validate:"omitempty,oneof=mysql postgres mssql sqlite"`
	Host     string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int               `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	User     string            `json:"user,omitempty" yaml:"user,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`

	// DSN, when set, wins over the component fields.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// GoogleConfig holds Google Sheets credentials. One of the two is needed for
// gsheet sources.
type GoogleConfig struct {
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
	APIKey          string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// RuntimeConfig controls transport and write behavior.
type RuntimeConfig struct {
	HTTPTimeout     Duration `json:"http_timeout" yaml:"http_timeout"`
	UserAgent       string   `json:"user_agent" yaml:"user_agent"`
	InsertBatchSize int      `json:"insert_batch_size" yaml:"insert_batch_size" validate:"min=0"`
}

// MetricsConfig selects a metrics backend.
type MetricsConfig struct {
	Backend    string   `json:"backend" yaml:"backend" validate:"omitempty,oneof=none datadog"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	FlushEvery Duration `json:"flush_every" yaml:"flush_every"`
}

// AnalysisConfig controls the regression run.
type AnalysisConfig struct {
	Target   string   `json:"target" yaml:"target"`
	Exclude  []string `json:"exclude" yaml:"exclude"`
	TestSize float64  `json:"test_size" yaml:"test_size" validate:"gte=0,lt=1"`
	Seed     uint64   `json:"seed" yaml:"seed"`
}

// Defaults.
const (
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultInsertBatchSize = 500
	DefaultUserAgent       = "hretl/1.0"
	DefaultTarget          = "employed"
	DefaultTestSize        = 0.2
	DefaultSeed            = 42
)

// Load reads a JSON or YAML config file. Any .env file given in envFiles (or
// ./.env when none are given) is loaded into the environment first; missing
// .env files are not an error.
func Load(path string, envFiles ...string) (Config, error) {
	if err := LoadEnv(envFiles...); err != nil {
		return Config{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	default:
		format = "json"
	}
	return Parse(raw, format)
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// Parse decodes raw config bytes ("json" or "yaml"), expands ${VAR}
// references, applies defaults and validates.
func Parse(raw []byte, format string) (Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var c Config
	switch format {
	case "yaml":
		if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
			return Config{}, fmt.Errorf("decode yaml config: %w", err)
		}
	case "json":
		if err := json.Unmarshal([]byte(expanded), &c); err != nil {
			return Config{}, fmt.Errorf("decode json config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", format)
	}

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyDefaults fills unset runtime and analysis values.
func (c *Config) ApplyDefaults() {
	if c.Job == "" {
		c.Job = "hr_job_change"
	}
	if c.Runtime.HTTPTimeout <= 0 {
		c.Runtime.HTTPTimeout = Duration(DefaultHTTPTimeout)
	}
	if c.Runtime.InsertBatchSize <= 0 {
		c.Runtime.InsertBatchSize = DefaultInsertBatchSize
	}
	if c.Runtime.UserAgent == "" {
		c.Runtime.UserAgent = DefaultUserAgent
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = "none"
	}
	if c.Analysis.Target == "" {
		c.Analysis.Target = DefaultTarget
	}
	if c.Analysis.Exclude == nil {
		c.Analysis.Exclude = []string{"enrollee_id", "full_name"}
	}
	if c.Analysis.TestSize == 0 {
		c.Analysis.TestSize = DefaultTestSize
	}
	if c.Analysis.Seed == 0 {
		c.Analysis.Seed = DefaultSeed
	}
	if c.SourceDB.Kind == "" && c.needsSourceDB() {
		c.SourceDB.Kind = "mysql"
	}
}

func (c *Config) needsSourceDB() bool {
	for _, s := range c.Sources {
		if s.Kind == "sql" {
			return true
		}
	}
	return false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	for name, s := range c.Sources {
		if s.Kind == "sql" && c.SourceDB.DSN == "" && c.SourceDB.Kind != "sqlite" && c.SourceDB.Host == "" {
			return fmt.Errorf("invalid config: sources.%s: sql source needs source_db.host or source_db.dsn", name)
		}
		if s.Kind == "gsheet" && c.Google.CredentialsFile == "" && c.Google.APIKey == "" {
			return fmt.Errorf("invalid config: sources.%s: gsheet source needs google.credentials_file or google.api_key", name)
		}
	}
	return nil
}

// Duration is a time.Duration that decodes from "30s" strings or from a
// number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) set(v any) error {
	switch t := v.(type) {
	case string:
		p, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(p)
	case float64:
		*d = Duration(t * float64(time.Second))
	case int:
		*d = Duration(time.Duration(t) * time.Second)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}
