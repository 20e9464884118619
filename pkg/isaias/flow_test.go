package isaias

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestConfFromConfigAndBuilder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Dir = t.TempDir()

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	requester := &stubRequester{}
	sink := &stubSink{}
	journal := stubJournal{}

	rt, err := flow.
		Source(
			SourceRequester(requester),
			SourceJournal(journal),
			SourceHTTPClient(&http.Client{Timeout: time.Second}),
			SourceObservability(&stubObservability{}),
		).
		Output(
			OutputSink(sink),
			OutputTransformer(upperTransformer{}),
		)
	if err != nil {
		t.Fatalf("Output returned error: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if rt.sink != sink {
		t.Fatalf("expected custom sink to be wired")
	}
	if rt.journal != journal {
		t.Fatalf("expected custom journal to be wired")
	}
	if _, ok := rt.derive["wind_speed"]; !ok {
		t.Fatalf("expected transformer to be registered under its lower-cased name")
	}
}

func TestConfFromConfigRequiresConfig(t *testing.T) {
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	var f *Flow
	if _, err := f.Output(); err == nil {
		t.Fatalf("expected error for nil flow")
	}
}

func TestFlowRunDeliversToCallback(t *testing.T) {
	srv := newOOIServer(t, 0, metbkFiles())
	cfg := testConfig(t, srv)
	cfg.Plots = nil

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithObservability(&stubObservability{})))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	var got []string
	report, err := flow.Run(context.Background(), OutputCallback("collect", func(source string, ds *Dataset) error {
		got = append(got, source)
		if ds.Len() != 5 {
			t.Errorf("expected 5 rows, got %d", ds.Len())
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "cnsm_metbk" {
		t.Fatalf("expected one delivery for cnsm_metbk, got %v", got)
	}
	if report.Results["cnsm_metbk"].Attempts != 1 {
		t.Fatalf("expected the job to be ready on the first probe")
	}
}
