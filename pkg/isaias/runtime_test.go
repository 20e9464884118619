package isaias

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
)

func testConfig(t *testing.T, srv *ooiServer) *Config {
	t.Helper()
	t.Setenv("OOI_USERNAME", "")
	t.Setenv("OOI_TOKEN", "")
	dir := t.TempDir()

	cfg, err := ParseConfig([]byte(fmt.Sprintf(`
credentials:
  username: OOIAPI-TEST
  token: TEMP-TOKEN
ooinet:
  base_url: %[1]s/api/m2m
  thredds_url: %[1]s/thredds/
polling:
  interval: 10ms
  timeout: 5s
journal:
  dir: %[2]s/journal
artifacts:
  backend: local
  root: %[2]s/artifacts
targets:
  - name: cnsm_metbk
    refdes: CP01CNSM-SBD11-06-METBKA000
    method: telemetered
    stream: metbk_a_dcl_instrument
    begin: 2020-08-04
    end: 2020-08-05
    exclude: [ENG, gps, velpt]
    derive: [wind_speed]
plots:
  - name: cnsm_sst_sss
    left: {target: cnsm_metbk, variable: sea_surface_temperature}
    right: {variable: met_salsurf}
    output: %[2]s/plots/cnsm_sst_sss.svg
`, srv.URL, dir)))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func metbkFiles() []ooiFile {
	return []ooiFile{
		{name: "deployment0011_CP01CNSM-SBD11-06-METBKA000_20200804T020000.nc", times: metbkTimes(2, 3)},
		{name: "deployment0011_CP01CNSM-SBD11-06-METBKA000_20200804T000000.nc", times: metbkTimes(0)},
		{name: "deployment0011_CP01CNSM-SBD11-06-METBKA000_20200804T040000.nc", times: metbkTimes(4, 5)},
	}
}

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Dir = t.TempDir()

	sinkStub := &stubSink{}
	journalStub := stubJournal{}
	obsStub := &stubObservability{}
	requester := &stubRequester{}

	rt, err := NewRuntime(
		cfg,
		WithRequester(requester),
		WithSink(sinkStub),
		WithJournal(journalStub),
		WithObservability(obsStub),
		WithTransformer(upperTransformer{}),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if rt.sink != sinkStub {
		t.Fatalf("expected custom sink to be used")
	}
	if rt.journal != journalStub || rt.ownsJournal {
		t.Fatalf("expected custom journal to be used and left open")
	}
	if rt.obs != obsStub {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.db != nil {
		t.Fatalf("expected db to be nil when custom sink is provided")
	}
	if rt.artifacts != nil {
		t.Fatalf("expected no artifact store for backend none")
	}
	tr, err := rt.transformer("wind_speed")
	if err != nil {
		t.Fatalf("transformer lookup: %v", err)
	}
	if _, ok := tr.(upperTransformer); !ok {
		t.Fatalf("expected registered transformer to shadow the built-in, got %T", tr)
	}
}

func TestNewRuntimeRequiresCredentials(t *testing.T) {
	t.Setenv("OOI_USERNAME", "")
	t.Setenv("OOI_TOKEN", "")
	cfg := DefaultConfig()
	cfg.Journal.Dir = t.TempDir()

	_, err := NewRuntime(cfg, WithObservability(&stubObservability{}))
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestNewRuntimeRejectsUnknownArtifactBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Dir = t.TempDir()
	cfg.Artifacts.Backend = "ftp"

	if _, err := NewRuntime(cfg, WithRequester(&stubRequester{}), WithObservability(&stubObservability{})); err == nil {
		t.Fatalf("expected unknown artifact backend to fail")
	}
}

func TestRuntimeRunEndToEnd(t *testing.T) {
	srv := newOOIServer(t, 2, metbkFiles(),
		"deployment0011_CP01CNSM-SBD11-06-METBKA000_gps.nc",
		"CP01CNSM-SBD11-06-METBKA000.ncml",
	)
	cfg := testConfig(t, srv)
	obs := &stubObservability{}
	snk := &stubSink{}

	rt, err := NewRuntime(cfg, WithObservability(obs), WithSink(snk))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown(context.Background())

	report, err := rt.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v (logged errors %v)", err, obs.errors)
	}

	res, ok := report.Results["cnsm_metbk"]
	if !ok {
		t.Fatalf("missing result, failures %v", report.Failures)
	}
	if res.Attempts != 3 || res.Resumed {
		t.Fatalf("expected a fresh job ready on the 3rd probe, got attempts=%d resumed=%v", res.Attempts, res.Resumed)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files after exclusions, got %v", res.Files)
	}
	for _, f := range res.Files {
		if strings.Contains(f, "gps") || !strings.HasSuffix(f, ".nc") {
			t.Fatalf("unexpected catalog entry kept: %s", f)
		}
	}

	requests, probes, opened := srv.stats()
	if requests != 1 || probes != 3 || len(opened) != 3 {
		t.Fatalf("unexpected server traffic requests=%d probes=%d opened=%v", requests, probes, opened)
	}
	if srv.auth[0] != "OOIAPI-TEST:TEMP-TOKEN" {
		t.Fatalf("expected basic auth, got %q", srv.auth[0])
	}
	if !strings.Contains(srv.queries[0], "beginDT=2020-08-04T00%3A00%3A00.000Z") {
		t.Fatalf("expected beginDT in query, got %s", srv.queries[0])
	}

	ds := res.Dataset
	if ds.Len() != 5 || !ds.IsTimeSorted() {
		t.Fatalf("expected 5 time-sorted rows, got %d sorted=%v", ds.Len(), ds.IsTimeSorted())
	}
	if want := time.Date(2020, 8, 4, 0, 0, 0, 0, time.UTC); !ds.Time[0].Equal(want) {
		t.Fatalf("expected first sample at %s, got %s", want, ds.Time[0])
	}
	if got := ds.Attrs[domain.AttrLocName]; got != "Coastal Pioneer Central Surface Mooring" {
		t.Fatalf("unexpected Location_name %q", got)
	}
	ws, ok := ds.Var("wind_speed")
	if !ok {
		t.Fatalf("wind_speed not derived")
	}
	for i, v := range ws.Values {
		if math.Abs(v-5) > 1e-9 {
			t.Fatalf("wind_speed[%d] = %v, want 5", i, v)
		}
	}

	if snk.rows != 5 || len(snk.sources) != 1 || snk.sources[0] != "cnsm_metbk" {
		t.Fatalf("unexpected sink writes rows=%d sources=%v", snk.rows, snk.sources)
	}
	if res.RowsWritten != 5 {
		t.Fatalf("expected 5 rows written, got %d", res.RowsWritten)
	}

	if len(report.Plots) != 1 {
		t.Fatalf("expected one plot, got %+v", report.Plots)
	}
	p := report.Plots[0]
	svg, err := os.ReadFile(p.Path)
	if err != nil {
		t.Fatalf("read plot: %v", err)
	}
	if !strings.Contains(string(svg), "Coastal Pioneer Central Surface Mooring") {
		t.Fatalf("plot title should default to the location name")
	}
	if !strings.Contains(string(svg), `stroke="#d62728"`) || !strings.Contains(string(svg), `stroke="#1f77b4"`) {
		t.Fatalf("plot should use the default red/blue axes")
	}
	wantURI := "artifact://local/" + report.RunID + "/plots/cnsm_sst_sss.svg"
	if p.Artifact != wantURI {
		t.Fatalf("expected artifact %s, got %s", wantURI, p.Artifact)
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts.Root, report.RunID, "plots", "cnsm_sst_sss.svg")); err != nil {
		t.Fatalf("artifact not stored: %v", err)
	}

	if got := obs.counter("isaias_requests_total"); got != 1 {
		t.Fatalf("expected 1 request counted, got %v", got)
	}
	if got, ok := obs.gauge("isaias_journal_pending"); !ok || got != 0 {
		t.Fatalf("expected journal pending gauge 0, got %v (%v)", got, ok)
	}
	if st := rt.journal.Stats(); st.Pending != 0 || st.LatestAppended != 1 {
		t.Fatalf("unexpected journal stats %+v", st)
	}
}

func TestRuntimeResumesAfterPollTimeout(t *testing.T) {
	srv := newOOIServer(t, 1_000, metbkFiles())
	cfg := testConfig(t, srv)
	cfg.Plots = nil
	cfg.Polling.Timeout = 50 * time.Millisecond

	rt, err := NewRuntime(cfg, WithObservability(&stubObservability{}), WithSink(&stubSink{}))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	report, err := rt.Run(context.Background())
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if _, failed := report.Failures["cnsm_metbk"]; !failed || len(report.Results) != 0 {
		t.Fatalf("expected the target to be reported as failed: %+v", report)
	}
	if st := rt.journal.Stats(); st.Pending != 1 {
		t.Fatalf("timed out job should stay pending, got %+v", st)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// The job finishes server-side; a new runtime picks it up from the journal.
	srv.mu.Lock()
	srv.notReady = 0
	srv.mu.Unlock()
	cfg.Polling.Timeout = 5 * time.Second

	rt2, err := NewRuntime(cfg, WithObservability(&stubObservability{}), WithSink(&stubSink{}))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt2.Shutdown(context.Background())

	report, err = rt2.Run(context.Background())
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	res := report.Results["cnsm_metbk"]
	if res == nil || !res.Resumed || res.Dataset.Len() != 5 {
		t.Fatalf("expected a resumed result with 5 rows, got %+v", res)
	}
	if requests, _, _ := srv.stats(); requests != 1 {
		t.Fatalf("resumed job must not be resubmitted, got %d requests", requests)
	}
	if st := rt2.journal.Stats(); st.Pending != 0 {
		t.Fatalf("resumed job should be committed, got %+v", st)
	}
}

func TestRuntimeRunValidatesTargetsBeforeRequesting(t *testing.T) {
	srv := newOOIServer(t, 0, metbkFiles())
	cfg := testConfig(t, srv)
	cfg.Targets[0].Derive = []string{"salinity_psu"}

	rt, err := NewRuntime(cfg, WithObservability(&stubObservability{}), WithSink(&stubSink{}))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if _, err := rt.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "salinity_psu") {
		t.Fatalf("expected unknown derive error, got %v", err)
	}
	if _, err := rt.Run(context.Background(), "cnsm_wavss"); err == nil || !strings.Contains(err.Error(), "unknown target") {
		t.Fatalf("expected unknown target error, got %v", err)
	}
	if requests, _, _ := srv.stats(); requests != 0 {
		t.Fatalf("no request should be issued, got %d", requests)
	}
}

func TestRuntimeSkipsPlotsOfFailedTargets(t *testing.T) {
	srv := newOOIServer(t, 0, metbkFiles())
	cfg := testConfig(t, srv)
	cfg.Targets[0].Exclude = Exclusions{"deployment"}

	rt, err := NewRuntime(cfg, WithObservability(&stubObservability{}), WithSink(&stubSink{}))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown(context.Background())

	report, err := rt.Run(context.Background())
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles when every file is excluded, got %v", err)
	}
	if len(report.Plots) != 0 {
		t.Fatalf("plots of a failed target must be skipped")
	}
	if _, err := os.Stat(cfg.Plots[0].Output); !os.IsNotExist(err) {
		t.Fatalf("no plot file should be written, stat err %v", err)
	}
}

func TestRuntimeShutdownIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Dir = t.TempDir()
	rt, err := NewRuntime(cfg, WithRequester(&stubRequester{}), WithObservability(&stubObservability{}))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
