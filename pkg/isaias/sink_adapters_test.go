package isaias

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
)

func sampleDataset() *Dataset {
	t0 := time.Date(2020, 8, 4, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.DimTime)
	ds.Time = []time.Time{t0, t0.Add(time.Hour)}
	ds.Put(&Variable{Name: "time", Dim: domain.DimTime, Values: []float64{0, 3600}})
	ds.Put(&Variable{Name: "sea_surface_temperature", Dim: domain.DimTime, Values: []float64{20.5, 21}})
	return ds
}

func TestNewCallbackSink(t *testing.T) {
	var received []*Dataset
	sink := NewCallbackSink("cb", func(source string, ds *Dataset) error {
		if source != "cnsm_metbk" {
			t.Errorf("unexpected source %q", source)
		}
		received = append(received, ds)
		return nil
	})

	n, err := sink.WriteDataset(context.Background(), "cnsm_metbk", sampleDataset())
	if err != nil {
		t.Fatalf("WriteDataset returned error: %v", err)
	}
	if n != 2 || len(received) != 1 {
		t.Fatalf("expected 2 rows in one delivery, got n=%d deliveries=%d", n, len(received))
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %s", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if _, err := sink.WriteDataset(context.Background(), "s", sampleDataset()); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
}

func TestNewCallbackSinkPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	sink := NewCallbackSink("cb", func(string, *Dataset) error { return boom })
	if n, err := sink.WriteDataset(context.Background(), "s", sampleDataset()); !errors.Is(err, boom) || n != 0 {
		t.Fatalf("expected boom and 0 rows, got %d %v", n, err)
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	errCh := make(chan error, 1)
	go func() {
		_, err := sink.WriteDataset(context.Background(), "cnsm_metbk", sampleDataset())
		errCh <- err
	}()

	var d Delivery
	select {
	case d = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel delivery")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteDataset returned error: %v", err)
	}
	if d.Source != "cnsm_metbk" || d.Dataset.Len() != 2 {
		t.Fatalf("unexpected delivery: %+v", d)
	}

	closeFn()
	if _, err := sink.WriteDataset(context.Background(), "cnsm_metbk", sampleDataset()); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sink.WriteDataset(ctx, "s", sampleDataset()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
