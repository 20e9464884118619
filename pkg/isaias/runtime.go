package isaias

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/reedan88/Isaias/internal/adapters/artifact"
	"github.com/reedan88/Isaias/internal/adapters/journal"
	"github.com/reedan88/Isaias/internal/adapters/observability"
	"github.com/reedan88/Isaias/internal/adapters/ooinet"
	"github.com/reedan88/Isaias/internal/adapters/opendap"
	"github.com/reedan88/Isaias/internal/adapters/sink"
	"github.com/reedan88/Isaias/internal/app/pipeline"
	"github.com/reedan88/Isaias/internal/app/plot"
	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

const serviceName = "isaias"

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	requester     DataRequester
	status        StatusChecker
	catalog       CatalogFetcher
	opener        DatasetOpener
	vocabulary    VocabularyLookup
	fetcher       FileFetcher
	sink          Sink
	journal       Journal
	artifacts     ArtifactStore
	observability Observability
	transformers  []Transformer
	clock         Clock
	httpClient    *http.Client
}

// WithRequester replaces the OOINet M2M client used to submit data requests.
func WithRequester(r DataRequester) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.requester = r
	}
}

// WithStatusChecker replaces the status.txt probe.
func WithStatusChecker(s StatusChecker) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.status = s
	}
}

// WithCatalogFetcher replaces the THREDDS catalog reader.
func WithCatalogFetcher(c CatalogFetcher) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.catalog = c
	}
}

// WithOpener replaces the OPeNDAP reader (local netCDF, a cache, fixtures).
func WithOpener(op DatasetOpener) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.opener = op
	}
}

// WithVocabulary replaces the location-name lookup.
func WithVocabulary(v VocabularyLookup) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.vocabulary = v
	}
}

// WithFileFetcher replaces the THREDDS file-server downloader.
func WithFileFetcher(f FileFetcher) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.fetcher = f
	}
}

// WithSink injects a custom sink so datasets can be sent to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithJournal lets callers bring their own journal or reuse an open one.
// The runtime does not close journals it did not open.
func WithJournal(j Journal) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.journal = j
	}
}

// WithArtifactStore overrides the configured artifact backend.
func WithArtifactStore(a ArtifactStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.artifacts = a
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithTransformer registers a derivation that targets can name in derive.
// It shadows a built-in with the same name.
func WithTransformer(t Transformer) RuntimeOption {
	return func(o *runtimeOverrides) {
		if t != nil {
			o.transformers = append(o.transformers, t)
		}
	}
}

// WithClock replaces the wall clock used for lookback windows, polling and
// the journal.
func WithClock(c Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithHTTPClient sets the http.Client shared by the OOINet client and the
// OPeNDAP reader.
func WithHTTPClient(hc *http.Client) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.httpClient = hc
	}
}

// Runtime wires the request → poll → catalog → assemble → sink pipeline and
// renders the configured plots once every target has been resolved.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	clock     ports.Clock
	client    *ooinet.Client
	pipe      *pipeline.FetchPipeline
	journal   ports.Journal
	sink      ports.Sink
	artifacts ports.ArtifactStore
	derive    map[string]ports.Transformer

	db          *sql.DB
	tableSink   *sink.SQLSink
	tableOnce   sync.Once
	tableErr    error
	ownsJournal bool
	stopTracing func(context.Context) error

	metricsOnce  sync.Once
	metricsSrv   *http.Server
	gaugeStopCh  chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// Report summarizes one Run.
type Report struct {
	RunID    string
	Results  map[string]*Result
	Failures map[string]error
	Plots    []PlotOutput
}

// PlotOutput is one rendered chart. Artifact is empty when no artifact store
// is configured.
type PlotOutput struct {
	Name     string
	Path     string
	Artifact string
}

// NewClient builds an OOINet client from the configured endpoints and
// credentials. The inventory commands use it without a full runtime.
func NewClient(cfg *Config, hc *http.Client) *Client {
	return ooinet.NewClient(ooinet.Config{
		BaseURL:    cfg.OOINet.BaseURL,
		ThreddsURL: cfg.OOINet.ThreddsURL,
		Username:   cfg.Credentials.Username,
		Token:      cfg.Credentials.Token,
		Timeout:    cfg.OOINet.RequestTimeout,
	}, ooinet.WithHTTPClient(hc))
}

// NewRuntime bootstraps the default adapters (OOINet M2M client, OPeNDAP
// reader, file journal, SQL sink when a driver is configured, Prometheus
// observability). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}
	clock := overrides.clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	client := NewClient(cfg, overrides.httpClient)

	requester := overrides.requester
	if requester == nil {
		if err := cfg.RequireCredentials(); err != nil {
			return nil, err
		}
		requester = client
	}
	var (
		status  StatusChecker    = client
		catalog CatalogFetcher   = client
		vocab   VocabularyLookup = client
		fetcher FileFetcher      = ooinet.NewDownloader(client, cfg.Download.Retry, obs)
		opener  DatasetOpener
	)
	if overrides.status != nil {
		status = overrides.status
	}
	if overrides.catalog != nil {
		catalog = overrides.catalog
	}
	if overrides.vocabulary != nil {
		vocab = overrides.vocabulary
	}
	if overrides.fetcher != nil {
		fetcher = overrides.fetcher
	}
	if overrides.opener != nil {
		opener = overrides.opener
	} else {
		opener = opendap.NewOpener(overrides.httpClient)
	}

	stopTracing, err := observability.InitTracing(serviceName, cfg.Tracing.Exporter, nil)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		cfg:         cfg,
		obs:         obs,
		clock:       clock,
		client:      client,
		derive:      make(map[string]ports.Transformer),
		stopTracing: stopTracing,
	}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Shutdown(context.Background())
		return nil, err
	}

	if overrides.journal != nil {
		rt.journal = overrides.journal
	} else {
		j, err := journal.NewFileJournal(cfg.Journal.Dir)
		if err != nil {
			return fail(err)
		}
		rt.journal = j
		rt.ownsJournal = true
	}

	switch {
	case overrides.sink != nil:
		rt.sink = overrides.sink
	case cfg.Sink.Driver != "":
		db, err := sql.Open(cfg.Sink.Driver, cfg.Sink.DSN)
		if err != nil {
			return fail(err)
		}
		rt.db = db
		s, err := sink.NewSQLSink(db, cfg.Sink.Driver, cfg.Sink.Table, cfg.Sink.BatchSize)
		if err != nil {
			return fail(err)
		}
		rt.sink = s
		if cfg.Sink.CreateTable {
			rt.tableSink = s
		}
	}

	if overrides.artifacts != nil {
		rt.artifacts = overrides.artifacts
	} else {
		store, err := artifact.New(cfg.Artifacts.Backend, cfg.Artifacts.Root, cfg.Artifacts.Minio)
		if err != nil {
			return fail(err)
		}
		rt.artifacts = store
	}

	for _, t := range overrides.transformers {
		rt.derive[strings.ToLower(t.Name())] = t
	}

	pipe, err := pipeline.NewFetchPipeline(pipeline.Deps{
		Requester:     requester,
		Poller:        pipeline.NewPoller(status, clock, cfg.Polling, obs),
		Catalog:       catalog,
		Assembler:     pipeline.NewAssembler(opener, vocab, cfg.OOINet.OpendapURL, obs),
		Journal:       rt.journal,
		Sink:          rt.sink,
		Fetcher:       fetcher,
		Artifacts:     rt.artifacts,
		Obs:           obs,
		Clock:         clock,
		ThreddsServer: client.ThreddsServer(),
		DownloadDir:   cfg.Download.Dir,
		ResumeWithin:  cfg.Journal.ResumeWithin,
	})
	if err != nil {
		return fail(err)
	}
	rt.pipe = pipe
	return rt, nil
}

// Client exposes the OOINet client for inventory lookups.
func (r *Runtime) Client() *Client { return r.client }

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *Config { return r.cfg }

// Run resolves the named targets, or every configured target when names is
// empty, then renders each plot whose targets all succeeded. A failed target
// does not stop the others; the returned error joins every failure and the
// report is returned alongside it.
func (r *Runtime) Run(ctx context.Context, names ...string) (*Report, error) {
	if r == nil {
		return nil, fmt.Errorf("runtime is nil")
	}
	r.startMetrics()

	targets, err := r.targets(names)
	if err != nil {
		return nil, err
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	runID := uuid.NewString()
	ctx, span := observability.StartSpan(ctx, "run",
		attribute.String("run_id", runID),
		attribute.Int("targets", len(targets)))
	defer span.End()

	r.obs.LogInfo("run_started",
		ports.Field{Key: "run_id", Value: runID},
		ports.Field{Key: "targets", Value: len(targets)})

	results := make([]*Result, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(max(r.cfg.Concurrency, 1))
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i], errs[i] = r.pipe.Run(ctx, runID, t)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		RunID:    runID,
		Results:  make(map[string]*Result),
		Failures: make(map[string]error),
	}
	var failures []error
	for i, t := range targets {
		if errs[i] != nil {
			report.Failures[t.Name] = errs[i]
			failures = append(failures, fmt.Errorf("target %s: %w", t.Name, errs[i]))
			continue
		}
		report.Results[t.Name] = results[i]
	}

	for _, p := range r.cfg.Plots {
		left, lok := report.Results[p.Left.Target]
		right, rok := report.Results[p.Right.Target]
		if !lok || !rok {
			r.obs.LogInfo("plot_skipped", ports.Field{Key: "plot", Value: p.Name})
			continue
		}
		out, err := r.renderPlot(ctx, runID, p, left.Dataset, right.Dataset)
		if err != nil {
			failures = append(failures, fmt.Errorf("plot %s: %w", p.Name, err))
			continue
		}
		report.Plots = append(report.Plots, out)
	}

	r.recordJournal()
	r.obs.LogInfo("run_complete",
		ports.Field{Key: "run_id", Value: runID},
		ports.Field{Key: "succeeded", Value: len(report.Results)},
		ports.Field{Key: "failed", Value: len(report.Failures)},
		ports.Field{Key: "plots", Value: len(report.Plots)})
	return report, errors.Join(failures...)
}

// targets builds the pipeline targets up front so a bad window or derive
// name fails the run before any request is issued.
func (r *Runtime) targets(names []string) ([]pipeline.Target, error) {
	selected := r.cfg.Targets
	if len(names) > 0 {
		selected = make([]TargetConfig, 0, len(names))
		for _, n := range names {
			tc, ok := r.cfg.Target(n)
			if !ok {
				return nil, fmt.Errorf("unknown target %q", n)
			}
			selected = append(selected, tc)
		}
	}
	if len(selected) == 0 {
		return nil, errors.New("no targets configured")
	}

	now := r.clock.Now()
	out := make([]pipeline.Target, 0, len(selected))
	var errs []error
	for _, tc := range selected {
		d, err := tc.Descriptor(now)
		if err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", tc.Name, err))
			continue
		}
		trs := make([]ports.Transformer, 0, len(tc.Derive))
		for _, name := range tc.Derive {
			tr, err := r.transformer(name)
			if err != nil {
				errs = append(errs, fmt.Errorf("target %s: %w", tc.Name, err))
				continue
			}
			trs = append(trs, tr)
		}
		out = append(out, pipeline.Target{
			Name:         tc.Name,
			Request:      d,
			Exclude:      tc.Exclude,
			Transformers: trs,
			Download:     r.cfg.Download.Enabled,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runtime) transformer(name string) (ports.Transformer, error) {
	if t, ok := r.derive[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return pipeline.TransformerByName(name)
}

func (r *Runtime) renderPlot(ctx context.Context, runID string, p PlotConfig, left, right *domain.Dataset) (PlotOutput, error) {
	_, span := observability.StartSpan(ctx, "plot", attribute.String("plot", p.Name))
	defer span.End()

	ls, err := plot.SeriesFrom(left, p.Left.Variable, p.Left.Color)
	if err != nil {
		return PlotOutput{}, err
	}
	rs, err := plot.SeriesFrom(right, p.Right.Variable, p.Right.Color)
	if err != nil {
		return PlotOutput{}, err
	}
	title := p.Title
	if title == "" {
		title = left.Attrs[domain.AttrLocName]
	}

	if err := os.MkdirAll(filepath.Dir(p.Output), 0o755); err != nil {
		return PlotOutput{}, err
	}
	f, err := os.Create(p.Output)
	if err != nil {
		return PlotOutput{}, err
	}
	err = plot.Render(f, plot.Chart{
		Title:  title,
		XLabel: plot.XLabelFrom(left),
		Left:   ls,
		Right:  rs,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return PlotOutput{}, err
	}

	out := PlotOutput{Name: p.Name, Path: p.Output}
	if r.artifacts != nil {
		object := path.Join(runID, "plots", filepath.Base(p.Output))
		uri, err := r.artifacts.Put(ctx, p.Output, object, "image/svg+xml")
		if err != nil {
			return PlotOutput{}, err
		}
		out.Artifact = uri
	}
	r.obs.LogInfo("plot_written",
		ports.Field{Key: "plot", Value: p.Name},
		ports.Field{Key: "path", Value: p.Output})
	return out, nil
}

func (r *Runtime) ensureTable(ctx context.Context) error {
	if r.tableSink == nil {
		return nil
	}
	r.tableOnce.Do(func() {
		r.tableErr = r.tableSink.EnsureTable(ctx)
	})
	return r.tableErr
}

// Shutdown stops the metrics server, flushes traces and closes the journal
// and DB connection. It is safe to call more than once.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		var errs []error

		if r.gaugeStopCh != nil {
			close(r.gaugeStopCh)
		}

		if r.metricsSrv != nil {
			if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}

		if r.ownsJournal && r.journal != nil {
			if err := r.journal.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if r.db != nil {
			if err := r.db.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if r.stopTracing != nil {
			if err := r.stopTracing(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		r.shutdownErr = errors.Join(errs...)
	})
	return r.shutdownErr
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Addr == "" {
		return
	}
	r.metricsOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		r.metricsSrv = &http.Server{
			Addr:    r.cfg.Metrics.Addr,
			Handler: mux,
		}

		go func() {
			if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server exited: %v", err)
			}
		}()

		r.gaugeStopCh = make(chan struct{})
		go r.recordJournalGauges(r.gaugeStopCh, time.Second)
	})
}

func (r *Runtime) recordJournalGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.recordJournal()
		}
	}
}

type journalRecorder interface {
	RecordJournal(ports.JournalStats)
}

func (r *Runtime) recordJournal() {
	if r.journal == nil {
		return
	}
	stats := r.journal.Stats()
	if rec, ok := r.obs.(journalRecorder); ok {
		rec.RecordJournal(stats)
		return
	}
	r.obs.SetGauge("isaias_journal_pending", float64(stats.Pending))
	r.obs.SetGauge("isaias_journal_size_bytes", float64(stats.SizeBytes))
}
