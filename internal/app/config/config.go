package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reedan88/Isaias/internal/adapters/artifact"
	"github.com/reedan88/Isaias/internal/adapters/ooinet"
	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

const (
	EnvUsername = "OOI_USERNAME"
	EnvToken    = "OOI_TOKEN"
)

// ErrNoCredentials is returned by RequireCredentials when no API user/token is
// configured.
var ErrNoCredentials = errors.New("ooinet credentials are required")

type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	OOINet      OOINetConfig      `yaml:"ooinet"`
	Polling     ports.PollPolicy  `yaml:"polling"`
	Targets     []TargetConfig    `yaml:"targets"`
	Plots       []PlotConfig      `yaml:"plots"`
	Download    DownloadConfig    `yaml:"download"`
	Sink        SinkConfig        `yaml:"sink"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
	Journal     JournalConfig     `yaml:"journal"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Concurrency int               `yaml:"concurrency"`
}

// CredentialsConfig holds the API user and token. File points at a YAML
// document with apiname/apikey keys.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
	File     string `yaml:"file"`
}

type OOINetConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ThreddsURL     string        `yaml:"thredds_url"`
	OpendapURL     string        `yaml:"opendap_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// TargetConfig is one dataset to fetch. Begin/End accept RFC 3339 or a plain
// date; Lookback, when set, replaces Begin with now minus the duration.
type TargetConfig struct {
	Name               string            `yaml:"name"`
	RefDes             string            `yaml:"refdes"`
	Method             string            `yaml:"method"`
	Stream             string            `yaml:"stream"`
	Begin              string            `yaml:"begin"`
	End                string            `yaml:"end"`
	Lookback           time.Duration     `yaml:"lookback"`
	Format             string            `yaml:"format"`
	IncludeProvenance  bool              `yaml:"include_provenance"`
	IncludeAnnotations bool              `yaml:"include_annotations"`
	Exclude            domain.Exclusions `yaml:"exclude"`
	Derive             []string          `yaml:"derive"`
}

type SeriesConfig struct {
	Target   string `yaml:"target"`
	Variable string `yaml:"variable"`
	Color    string `yaml:"color"`
}

type PlotConfig struct {
	Name   string       `yaml:"name"`
	Title  string       `yaml:"title"`
	Left   SeriesConfig `yaml:"left"`
	Right  SeriesConfig `yaml:"right"`
	Output string       `yaml:"output"`
}

type DownloadConfig struct {
	Enabled bool              `yaml:"enabled"`
	Dir     string            `yaml:"dir"`
	Retry   ports.RetryPolicy `yaml:",inline"`
}

type SinkConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	BatchSize   int    `yaml:"batch_size"`
	CreateTable bool   `yaml:"create_table"`
}

type ArtifactsConfig struct {
	Backend string               `yaml:"backend"`
	Root    string               `yaml:"root"`
	Minio   artifact.MinioConfig `yaml:"minio"`
}

type JournalConfig struct {
	Dir          string        `yaml:"dir"`
	ResumeWithin time.Duration `yaml:"resume_within"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Exporter string `yaml:"exporter"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.loadCredentials(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	_ = cfg.loadCredentials()
	cfg.applyDefaults()
	return &cfg
}

type credentialsFile struct {
	APIName string `yaml:"apiname"`
	APIKey  string `yaml:"apikey"`
}

func (c *Config) loadCredentials() error {
	if c.Credentials.File != "" && (c.Credentials.Username == "" || c.Credentials.Token == "") {
		raw, err := os.ReadFile(c.Credentials.File)
		if err != nil {
			return fmt.Errorf("credentials file: %w", err)
		}
		var f credentialsFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("credentials file %s: %w", c.Credentials.File, err)
		}
		if c.Credentials.Username == "" {
			c.Credentials.Username = f.APIName
		}
		if c.Credentials.Token == "" {
			c.Credentials.Token = f.APIKey
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvUsername)); v != "" {
		c.Credentials.Username = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		c.Credentials.Token = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.OOINet.BaseURL == "" {
		c.OOINet.BaseURL = ooinet.DefaultBaseURL
	}
	if c.OOINet.ThreddsURL == "" {
		c.OOINet.ThreddsURL = ooinet.DefaultThreddsURL
	}
	if !strings.HasSuffix(c.OOINet.ThreddsURL, "/") {
		c.OOINet.ThreddsURL += "/"
	}
	if c.OOINet.OpendapURL == "" {
		c.OOINet.OpendapURL = c.OOINet.ThreddsURL + "dodsC"
	}
	if c.OOINet.RequestTimeout == 0 {
		c.OOINet.RequestTimeout = 2 * time.Minute
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = 5 * time.Second
	}
	if c.Polling.Timeout == 0 {
		c.Polling.Timeout = 10 * time.Minute
	}
	if c.Download.Dir == "" {
		c.Download.Dir = "./data/download"
	}
	if c.Download.Retry.MaxRetries == 0 {
		c.Download.Retry.MaxRetries = 5
	}
	if c.Download.Retry.Sleep == 0 {
		c.Download.Retry.Sleep = 30 * time.Second
	}
	if c.Download.Retry.Concurrency == 0 {
		c.Download.Retry.Concurrency = 5
	}
	if c.Sink.Table == "" {
		c.Sink.Table = "measurements"
	}
	if c.Sink.BatchSize == 0 {
		c.Sink.BatchSize = 5_000
	}
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "none"
	}
	if c.Artifacts.Root == "" {
		c.Artifacts.Root = "./data/artifacts"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Journal.ResumeWithin == 0 {
		c.Journal.ResumeWithin = 24 * time.Hour
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 2
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Name == "" {
			t.Name = strings.ToLower(t.RefDes + "_" + t.Stream)
		}
	}
	for i := range c.Plots {
		p := &c.Plots[i]
		if p.Output == "" && p.Name != "" {
			p.Output = "plots/" + p.Name + ".svg"
		}
		if p.Right.Target == "" {
			p.Right.Target = p.Left.Target
		}
		if p.Left.Color == "" {
			p.Left.Color = "tab:red"
		}
		if p.Right.Color == "" {
			p.Right.Color = "tab:blue"
		}
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Polling.Interval < 0 || c.Polling.Timeout < 0 {
		errs = append(errs, errors.New("polling.interval and polling.timeout must be positive"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	switch c.Sink.Driver {
	case "", "postgres", "pgx", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("sink.driver %q is not supported", c.Sink.Driver))
	}
	if c.Sink.Driver != "" && c.Sink.DSN == "" {
		errs = append(errs, errors.New("sink.dsn is required when sink.driver is set"))
	}
	switch strings.ToLower(c.Artifacts.Backend) {
	case "none", "local":
	case "minio":
		if c.Artifacts.Minio.Endpoint == "" {
			errs = append(errs, errors.New("artifacts.minio.endpoint is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend %q is not supported", c.Artifacts.Backend))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter))
	}

	names := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if names[t.Name] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name))
		}
		names[t.Name] = true
		if _, err := t.Descriptor(time.Now()); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d] (%s): %w", i, t.Name, err))
		}
	}
	for i, p := range c.Plots {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("plots[%d]: name is required", i))
		}
		if p.Left.Variable == "" || p.Right.Variable == "" {
			errs = append(errs, fmt.Errorf("plots[%d]: left and right variables are required", i))
		}
		for _, tgt := range []string{p.Left.Target, p.Right.Target} {
			if !names[tgt] {
				errs = append(errs, fmt.Errorf("plots[%d]: unknown target %q", i, tgt))
			}
		}
	}
	return errors.Join(errs...)
}

// RequireCredentials reports whether API calls can be authenticated.
func (c *Config) RequireCredentials() error {
	if c.Credentials.Username == "" || c.Credentials.Token == "" {
		return fmt.Errorf("%w: set credentials in the config, %s/%s, or credentials.file", ErrNoCredentials, EnvUsername, EnvToken)
	}
	return nil
}

// Target returns the named target.
func (c *Config) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// Descriptor resolves the target into a request. Lookback windows start on the
// hour so repeated runs produce the same request key.
func (t TargetConfig) Descriptor(now time.Time) (domain.RequestDescriptor, error) {
	ref, err := domain.ParseRefDes(t.RefDes)
	if err != nil {
		return domain.RequestDescriptor{}, err
	}
	d := domain.RequestDescriptor{
		Ref:                ref,
		Method:             t.Method,
		Stream:             t.Stream,
		Format:             t.Format,
		IncludeProvenance:  t.IncludeProvenance,
		IncludeAnnotations: t.IncludeAnnotations,
	}
	if t.Lookback < 0 {
		return d, errors.New("lookback must be positive")
	}
	if t.Lookback > 0 && t.Begin != "" {
		return d, errors.New("begin and lookback are mutually exclusive")
	}
	if t.Lookback > 0 {
		d.Begin = now.UTC().Add(-t.Lookback).Truncate(time.Hour)
	} else if d.Begin, err = ParseTime(t.Begin); err != nil {
		return d, fmt.Errorf("begin: %w", err)
	}
	if d.End, err = ParseTime(t.End); err != nil {
		return d, fmt.Errorf("end: %w", err)
	}
	if err := t.Exclude.Validate(); err != nil {
		return d, err
	}
	return d, d.Validate()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 and the shorter layouts above, read as UTC. An
// empty string is the zero time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
