package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// Target is one request the pipeline resolves end to end.
type Target struct {
	Name         string
	Request      domain.RequestDescriptor
	Exclude      domain.Exclusions
	Transformers []ports.Transformer
	Download     bool
}

// Result is what one target produced.
type Result struct {
	Target      string
	RunID       string
	Job         domain.JobHandle
	Resumed     bool
	Attempts    int
	Files       []string
	Dataset     *domain.Dataset
	RowsWritten int
	Downloaded  []string
	Artifacts   []string
}

// Deps are the collaborators of a FetchPipeline. Journal, Sink, Fetcher and
// Artifacts are optional.
type Deps struct {
	Requester     ports.DataRequester
	Poller        *Poller
	Catalog       ports.CatalogFetcher
	Assembler     *Assembler
	Journal       ports.Journal
	Sink          ports.Sink
	Fetcher       ports.FileFetcher
	Artifacts     ports.ArtifactStore
	Obs           ports.Observability
	Clock         ports.Clock
	ThreddsServer string
	DownloadDir   string
	ResumeWithin  time.Duration
}

// FetchPipeline runs request, poll, catalog, assemble and sink for a target.
type FetchPipeline struct {
	d      Deps
	tracer trace.Tracer
}

func NewFetchPipeline(d Deps) (*FetchPipeline, error) {
	if d.Requester == nil || d.Poller == nil || d.Catalog == nil || d.Assembler == nil {
		return nil, errors.New("fetch pipeline: requester, poller, catalog and assembler are required")
	}
	if d.ThreddsServer == "" {
		return nil, errors.New("fetch pipeline: thredds server is required")
	}
	if d.Obs == nil {
		d.Obs = ports.NopObservability{}
	}
	if d.Clock == nil {
		d.Clock = ports.SystemClock{}
	}
	return &FetchPipeline{d: d, tracer: otel.Tracer("github.com/reedan88/Isaias/pipeline")}, nil
}

// Run resolves one target. Any error is terminal for this target only.
func (p *FetchPipeline) Run(ctx context.Context, runID string, t Target) (*Result, error) {
	start := p.d.Clock.Now()
	ctx, span := p.tracer.Start(ctx, "fetch_target", trace.WithAttributes(
		attribute.String("target", t.Name),
		attribute.String("refdes", t.Request.Ref.String()),
		attribute.String("stream", t.Request.Stream),
	))
	defer span.End()

	res, err := p.run(ctx, runID, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.d.Obs.IncCounter("isaias_target_failures_total", 1)
		p.d.Obs.LogError("target_failed", err,
			ports.Field{Key: "target", Value: t.Name},
			ports.Field{Key: "run_id", Value: runID})
		return nil, err
	}
	p.d.Obs.ObserveLatency("isaias_target_seconds", p.d.Clock.Now().Sub(start).Seconds())
	p.d.Obs.LogInfo("target_complete",
		ports.Field{Key: "target", Value: t.Name},
		ports.Field{Key: "files", Value: len(res.Files)},
		ports.Field{Key: "rows", Value: res.Dataset.Len()})
	return res, nil
}

func (p *FetchPipeline) run(ctx context.Context, runID string, t Target) (*Result, error) {
	if err := t.Exclude.Validate(); err != nil {
		return nil, err
	}
	if err := t.Request.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Target: t.Name, RunID: runID}

	job, jobID, resumed, err := p.obtainJob(ctx, runID, t)
	if err != nil {
		return nil, err
	}
	res.Job, res.Resumed = job, resumed

	poll, err := p.poll(ctx, job)
	if err != nil {
		return nil, err
	}
	res.Attempts = poll.Attempts

	items, err := p.fetchCatalog(ctx, poll.DatasetID)
	if err != nil {
		return nil, err
	}
	if p.d.Journal != nil && jobID != 0 {
		if err := p.d.Journal.Commit(jobID); err != nil {
			p.d.Obs.LogError("journal_commit_failed", err, ports.Field{Key: "job_id", Value: jobID})
		}
	}

	files, err := ParseCatalog(items, t.Exclude)
	if err != nil {
		return nil, err
	}
	res.Files = files

	if t.Download && p.d.Fetcher != nil {
		if err := p.download(ctx, t, res); err != nil {
			return nil, err
		}
	}

	ds, err := p.assemble(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, tr := range t.Transformers {
		if err := tr.Transform(ds); err != nil {
			return nil, fmt.Errorf("derive %s: %w", tr.Name(), err)
		}
	}
	res.Dataset = ds

	if p.d.Sink != nil {
		n, err := p.write(ctx, t.Name, ds)
		if err != nil {
			return nil, err
		}
		res.RowsWritten = n
	}
	return res, nil
}

// obtainJob resumes a recent uncommitted job for the same request or submits
// a new one.
func (p *FetchPipeline) obtainJob(ctx context.Context, runID string, t Target) (domain.JobHandle, ports.JobID, bool, error) {
	ctx, span := p.tracer.Start(ctx, "request")
	defer span.End()

	key := t.Request.Key()
	if p.d.Journal != nil && p.d.ResumeWithin > 0 {
		id, rec, ok, err := FindPending(p.d.Journal, key, p.d.Clock.Now().Add(-p.d.ResumeWithin))
		if err != nil {
			p.d.Obs.LogError("journal_scan_failed", err)
		} else if ok {
			p.d.Obs.IncCounter("isaias_jobs_resumed_total", 1)
			p.d.Obs.LogInfo("job_resumed",
				ports.Field{Key: "target", Value: t.Name},
				ports.Field{Key: "thredds_url", Value: rec.ThreddsURL})
			span.SetAttributes(attribute.Bool("resumed", true))
			return domain.JobHandle{ThreddsURL: rec.ThreddsURL}, id, true, nil
		}
	}

	job, err := p.d.Requester.RequestThredds(ctx, t.Request)
	p.d.Obs.IncCounter("isaias_requests_total", 1)
	if err != nil {
		span.RecordError(err)
		return domain.JobHandle{}, 0, false, err
	}

	var id ports.JobID
	if p.d.Journal != nil {
		id, err = p.d.Journal.Append(ports.JobRecord{
			RunID:      runID,
			Key:        key,
			ThreddsURL: job.ThreddsURL,
			CreatedAt:  p.d.Clock.Now().UTC(),
		})
		if err != nil {
			p.d.Obs.LogError("journal_append_failed", err, ports.Field{Key: "target", Value: t.Name})
			id = 0
		}
	}
	return job, id, false, nil
}

func (p *FetchPipeline) poll(ctx context.Context, job domain.JobHandle) (PollResult, error) {
	ctx, span := p.tracer.Start(ctx, "poll", trace.WithAttributes(attribute.String("thredds_url", job.ThreddsURL)))
	defer span.End()

	res, err := p.d.Poller.Wait(ctx, job.ThreddsURL)
	if err != nil {
		span.RecordError(err)
		return PollResult{}, err
	}
	span.SetAttributes(attribute.Int("attempts", res.Attempts))
	return res, nil
}

func (p *FetchPipeline) fetchCatalog(ctx context.Context, datasetID string) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "catalog")
	defer span.End()

	items, err := p.d.Catalog.FetchCatalog(ctx, domain.CatalogURL(p.d.ThreddsServer, datasetID))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("entries", len(items)))
	return items, nil
}

func (p *FetchPipeline) assemble(ctx context.Context, files []string) (*domain.Dataset, error) {
	ctx, span := p.tracer.Start(ctx, "assemble", trace.WithAttributes(attribute.Int("files", len(files))))
	defer span.End()

	ds, err := p.d.Assembler.Assemble(ctx, files)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	p.d.Obs.IncCounter("isaias_datasets_assembled_total", 1)
	return ds, nil
}

func (p *FetchPipeline) write(ctx context.Context, source string, ds *domain.Dataset) (int, error) {
	ctx, span := p.tracer.Start(ctx, "sink", trace.WithAttributes(attribute.String("sink", p.d.Sink.Name())))
	defer span.End()

	start := time.Now()
	n, err := p.d.Sink.WriteDataset(ctx, source, ds)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("sink %s: %w", p.d.Sink.Name(), err)
	}
	p.d.Obs.ObserveLatency("isaias_sink_latency_seconds", time.Since(start).Seconds())
	p.d.Obs.IncCounter("isaias_rows_written_total", float64(n))
	return n, nil
}

func (p *FetchPipeline) download(ctx context.Context, t Target, res *Result) error {
	ctx, span := p.tracer.Start(ctx, "download")
	defer span.End()

	dir := filepath.Join(p.d.DownloadDir, t.Name)
	paths, err := p.d.Fetcher.Download(ctx, res.Files, dir)
	if err != nil {
		span.RecordError(err)
		return err
	}
	res.Downloaded = paths

	if p.d.Artifacts == nil {
		return nil
	}
	for _, local := range paths {
		object := filepath.ToSlash(filepath.Join(res.RunID, t.Name, filepath.Base(local)))
		uri, err := p.d.Artifacts.Put(ctx, local, object, "application/x-netcdf")
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("store %s: %w", local, err)
		}
		res.Artifacts = append(res.Artifacts, uri)
	}
	return nil
}

// FindPending returns the newest uncommitted job for key created after since.
func FindPending(j ports.Journal, key string, since time.Time) (ports.JobID, ports.JobRecord, bool, error) {
	var (
		bestID  ports.JobID
		bestRec ports.JobRecord
		found   bool
	)
	err := j.Iterate(1, func(id ports.JobID, rec ports.JobRecord, committed bool) error {
		if committed || rec.Key != key || rec.ThreddsURL == "" || rec.CreatedAt.Before(since) {
			return nil
		}
		bestID, bestRec, found = id, rec, true
		return nil
	})
	if err != nil {
		return 0, ports.JobRecord{}, false, err
	}
	return bestID, bestRec, found, nil
}
