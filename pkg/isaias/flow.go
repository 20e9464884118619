package isaias

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Flow is a convenience builder that lets callers say Conf → Source → Output
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// SourceOption configures where data comes from (request, poll, catalog, files).
type SourceOption func(*Flow)

// OutputOption configures where assembled datasets and plots go.
type OutputOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// Source records request-side overrides.
func (f *Flow) Source(opts ...SourceOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Output records output-side overrides and builds a Runtime ready to run.
func (f *Flow) Output(opts ...OutputOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for Output + Runtime.Run + Runtime.Shutdown.
func (f *Flow) Run(ctx context.Context, opts ...OutputOption) (*Report, error) {
	rt, err := f.Output(opts...)
	if err != nil {
		return nil, err
	}
	report, runErr := rt.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return report, runErr
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// SourceHTTPClient shares one http.Client between the M2M client and the OPeNDAP reader.
func SourceHTTPClient(hc *http.Client) SourceOption {
	return func(f *Flow) {
		if f != nil && hc != nil {
			f.appendOptions(WithHTTPClient(hc))
		}
	}
}

// SourceRequester injects a custom request submitter.
func SourceRequester(r DataRequester) SourceOption {
	return func(f *Flow) {
		if f != nil && r != nil {
			f.appendOptions(WithRequester(r))
		}
	}
}

// SourceOpener swaps the OPeNDAP reader.
func SourceOpener(op DatasetOpener) SourceOption {
	return func(f *Flow) {
		if f != nil && op != nil {
			f.appendOptions(WithOpener(op))
		}
	}
}

// SourceJournal lets callers bring their own job journal.
func SourceJournal(j Journal) SourceOption {
	return func(f *Flow) {
		if f != nil && j != nil {
			f.appendOptions(WithJournal(j))
		}
	}
}

// SourceObservability overrides the default Prometheus-based observability stack.
func SourceObservability(obs Observability) SourceOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// OutputSink injects a custom Sink implementation.
func OutputSink(s Sink) OutputOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// OutputTransformer registers a derivation targets can name in derive.
func OutputTransformer(tr Transformer) OutputOption {
	return func(f *Flow) {
		if f != nil && tr != nil {
			f.appendOptions(WithTransformer(tr))
		}
	}
}

// OutputArtifacts overrides where plots and downloads are stored.
func OutputArtifacts(a ArtifactStore) OutputOption {
	return func(f *Flow) {
		if f != nil && a != nil {
			f.appendOptions(WithArtifactStore(a))
		}
	}
}

// OutputCallback installs a sink built from a simple callback function.
func OutputCallback(name string, fn DatasetHandler) OutputOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
