package isaias

import (
	"github.com/reedan88/Isaias/internal/adapters/artifact"
	"github.com/reedan88/Isaias/internal/app/config"
	"github.com/reedan88/Isaias/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// TargetConfig describes one dataset request.
	TargetConfig = config.TargetConfig
	// PlotConfig pairs two target variables on a dual-axis chart.
	PlotConfig = config.PlotConfig
	// SeriesConfig is one side of a plot.
	SeriesConfig = config.SeriesConfig
	// CredentialsConfig holds the OOINet API user and token.
	CredentialsConfig = config.CredentialsConfig
	// OOINetConfig holds the M2M, THREDDS and OPeNDAP endpoints.
	OOINetConfig = config.OOINetConfig
	// SinkConfig configures the SQL sink.
	SinkConfig = config.SinkConfig
	// ArtifactsConfig selects where plots and downloads are kept.
	ArtifactsConfig = config.ArtifactsConfig
	// MinioConfig configures the S3-compatible artifact backend.
	MinioConfig = artifact.MinioConfig
	// JournalConfig configures the on-disk job journal.
	JournalConfig = config.JournalConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// PollPolicy controls the catalog poller.
	PollPolicy = ports.PollPolicy
	// RetryPolicy controls file downloads.
	RetryPolicy = ports.RetryPolicy
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes, defaults and validates an in-memory YAML document.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns a config with every default applied and no targets.
func DefaultConfig() *Config {
	return config.Default()
}

// ErrNoCredentials is returned when a request is needed but no API user/token
// is configured.
var ErrNoCredentials = config.ErrNoCredentials
