package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reedan88/Isaias/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	quiet    bool
}

// NewPromObs registers the isaias metrics on the default registerer.
func NewPromObs() *PromObs {
	return NewPromObsWith(prometheus.DefaultRegisterer)
}

func NewPromObsWith(reg prometheus.Registerer) *PromObs {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	requests := counter("isaias_requests_total", "Asynchronous data requests submitted to OOINet.")
	pollAttempts := counter("isaias_poll_attempts_total", "Status probes issued while waiting for jobs.")
	resumed := counter("isaias_jobs_resumed_total", "Pending jobs picked up from the journal instead of resubmitted.")
	failures := counter("isaias_target_failures_total", "Targets that ended in an error.")
	assembled := counter("isaias_datasets_assembled_total", "Datasets assembled from THREDDS catalogs.")
	rows := counter("isaias_rows_written_total", "Measurement rows inserted into the sink.")
	files := counter("isaias_files_downloaded_total", "netCDF files downloaded from the THREDDS file server.")

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isaias_journal_pending",
		Help: "Jobs in the journal whose catalog has not been fetched yet.",
	})
	journalSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isaias_journal_size_bytes",
		Help: "Size of the job journal on disk.",
	})

	pollWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isaias_poll_wait_seconds",
		Help:    "Time from the first status probe until the job was ready.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 11),
	})
	target := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isaias_target_seconds",
		Help:    "End-to-end duration of a successful target.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isaias_sink_latency_seconds",
		Help:    "Time spent writing one dataset to the sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	download := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isaias_download_seconds",
		Help:    "Duration of one file download.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	reg.MustRegister(requests, pollAttempts, resumed, failures, assembled, rows, files,
		pending, journalSize, pollWait, target, sinkLatency, download)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"isaias_requests_total":           requests,
			"isaias_poll_attempts_total":      pollAttempts,
			"isaias_jobs_resumed_total":       resumed,
			"isaias_target_failures_total":    failures,
			"isaias_datasets_assembled_total": assembled,
			"isaias_rows_written_total":       rows,
			"isaias_files_downloaded_total":   files,
		},
		gauges: map[string]prometheus.Gauge{
			"isaias_journal_pending":    pending,
			"isaias_journal_size_bytes": journalSize,
		},
		histos: map[string]prometheus.Observer{
			"isaias_poll_wait_seconds":    pollWait,
			"isaias_target_seconds":       target,
			"isaias_sink_latency_seconds": sinkLatency,
			"isaias_download_seconds":     download,
		},
	}
}

// Quiet suppresses info lines. Errors are always logged.
func (p *PromObs) Quiet(q bool) { p.quiet = q }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	if p.quiet {
		return
	}
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

// RecordJournal publishes the journal backlog.
func (p *PromObs) RecordJournal(st ports.JournalStats) {
	p.SetGauge("isaias_journal_pending", float64(st.Pending))
	p.SetGauge("isaias_journal_size_bytes", float64(st.SizeBytes))
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)
