package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvToken, "")

	path := writeConfig(t, `
credentials:
  username: OOIAPI-XXXX
  token: TEMP-TOKEN
targets:
  - name: cnsm_metbk
    refdes: CP01CNSM-SBD11-06-METBKA000
    method: telemetered
    stream: metbk_a_dcl_instrument
    lookback: 48h
    exclude: [ENG, gps, velpt]
    derive: [wind_speed]
plots:
  - name: cnsm_sst_sss
    left: {target: cnsm_metbk, variable: sea_surface_temperature, color: "#d62728"}
    right: {variable: met_salsurf, color: "#1f77b4"}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Polling.Interval != 5*time.Second || cfg.Polling.Timeout != 10*time.Minute {
		t.Fatalf("unexpected polling defaults %+v", cfg.Polling)
	}
	if cfg.OOINet.OpendapURL != "https://opendap.oceanobservatories.org/thredds/dodsC" {
		t.Fatalf("unexpected opendap default %s", cfg.OOINet.OpendapURL)
	}
	if cfg.Download.Retry.MaxRetries != 5 || cfg.Download.Retry.Sleep != 30*time.Second || cfg.Download.Retry.Concurrency != 5 {
		t.Fatalf("unexpected download defaults %+v", cfg.Download)
	}
	if cfg.Journal.Dir != "./data/journal" || cfg.Journal.ResumeWithin != 24*time.Hour {
		t.Fatalf("unexpected journal defaults %+v", cfg.Journal)
	}
	if cfg.Sink.Table != "measurements" || cfg.Sink.BatchSize != 5000 {
		t.Fatalf("unexpected sink defaults %+v", cfg.Sink)
	}
	if cfg.Concurrency != 2 || cfg.Artifacts.Backend != "none" || cfg.Tracing.Exporter != "none" {
		t.Fatalf("unexpected defaults concurrency=%d artifacts=%s tracing=%s", cfg.Concurrency, cfg.Artifacts.Backend, cfg.Tracing.Exporter)
	}
	if got := cfg.Targets[0].Exclude; len(got) != 3 || got[1] != "gps" {
		t.Fatalf("unexpected exclusions %v", got)
	}
	p := cfg.Plots[0]
	if p.Right.Target != "cnsm_metbk" || p.Output != "plots/cnsm_sst_sss.svg" {
		t.Fatalf("unexpected plot defaults %+v", p)
	}
	if err := cfg.RequireCredentials(); err != nil {
		t.Fatalf("credentials: %v", err)
	}
}

func TestLoadRejectsScalarExclude(t *testing.T) {
	path := writeConfig(t, `
targets:
  - refdes: CP01CNSM-SBD11-06-METBKA000
    method: telemetered
    stream: metbk_a_dcl_instrument
    exclude: ENG
`)
	if _, err := Load(path); !errors.Is(err, domain.ErrInvalidExclusion) {
		t.Fatalf("expected ErrInvalidExclusion, got %v", err)
	}
}

func TestLoadRejectsNonStringExclude(t *testing.T) {
	path := writeConfig(t, `
targets:
  - refdes: CP01CNSM-SBD11-06-METBKA000
    method: telemetered
    stream: metbk_a_dcl_instrument
    exclude: [ENG, 42]
`)
	if _, err := Load(path); !errors.Is(err, domain.ErrInvalidExclusion) {
		t.Fatalf("expected ErrInvalidExclusion, got %v", err)
	}
}

func TestLoadReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
sink:
  driver: mysql
targets:
  - name: a
    refdes: CP01CNSM
    method: telemetered
    stream: s
  - name: a
    refdes: CP01CNSM-SBD11-06-METBKA000
    method: telemetered
    stream: s
    begin: 2020-08-05
    end: 2020-08-01
plots:
  - name: p
    left: {target: missing, variable: x}
    right: {variable: y}
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"sink.driver", "duplicate name", "invalid reference designator", "before begin", "unknown target"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
	if !errors.Is(err, domain.ErrInvalidRefDes) {
		t.Fatalf("joined error should wrap ErrInvalidRefDes")
	}
}

func TestCredentialsFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "user_info.yaml")
	if err := os.WriteFile(creds, []byte("apiname: OOIAPI-FILE\napikey: FILE-KEY\n"), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}

	t.Setenv(EnvUsername, "")
	t.Setenv(EnvToken, "")
	cfg, err := Parse([]byte("credentials:\n  file: " + creds + "\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Credentials.Username != "OOIAPI-FILE" || cfg.Credentials.Token != "FILE-KEY" {
		t.Fatalf("credentials file not read: %+v", cfg.Credentials)
	}

	t.Setenv(EnvToken, "ENV-TOKEN")
	cfg, err = Parse([]byte("credentials:\n  file: " + creds + "\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Credentials.Token != "ENV-TOKEN" {
		t.Fatalf("environment should win, got %s", cfg.Credentials.Token)
	}
}

func TestRequireCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvToken, "")
	cfg := Default()
	if err := cfg.RequireCredentials(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestTargetDescriptor(t *testing.T) {
	now := time.Date(2020, 8, 4, 13, 27, 0, 0, time.UTC)
	tc := TargetConfig{
		RefDes:   "CP01CNSM-SBD11-06-METBKA000",
		Method:   "telemetered",
		Stream:   "metbk_a_dcl_instrument",
		Lookback: 48 * time.Hour,
	}
	d, err := tc.Descriptor(now)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if want := time.Date(2020, 8, 2, 13, 0, 0, 0, time.UTC); !d.Begin.Equal(want) {
		t.Fatalf("expected begin %s, got %s", want, d.Begin)
	}
	if !d.End.IsZero() {
		t.Fatalf("end should be open, got %s", d.End)
	}
	d2, _ := tc.Descriptor(now.Add(20 * time.Minute))
	if d.Key() != d2.Key() {
		t.Fatalf("lookback keys should be stable within the hour")
	}

	tc.Begin = "2020-08-01"
	if _, err := tc.Descriptor(now); err == nil {
		t.Fatalf("begin with lookback should fail")
	}

	tc.Lookback = 0
	tc.End = "2020-08-05T12:00:00Z"
	d, err = tc.Descriptor(now)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if d.Begin.Format(time.RFC3339) != "2020-08-01T00:00:00Z" || d.End.Hour() != 12 {
		t.Fatalf("unexpected window %s - %s", d.Begin, d.End)
	}
}

func TestParseTime(t *testing.T) {
	for _, in := range []string{"2020-08-04T13:00:00Z", "2020-08-04T13:00:00.000Z", "2020-08-04 13:00:00", "2020-08-04T13:00"} {
		got, err := ParseTime(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(time.Date(2020, 8, 4, 13, 0, 0, 0, time.UTC)) {
			t.Fatalf("parse %q: got %s", in, got)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Fatalf("expected an error")
	}
}
