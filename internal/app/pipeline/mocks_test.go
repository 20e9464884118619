package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

const testThredds = "https://opendap.oceanobservatories.org/thredds/catalog/ooi/jdoe@whoi.edu/20200101T000000-CP01CNSM-SBD11-06-METBKA000-recovered_host-metbk_a_dcl_instrument_recovered/catalog.html"

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// scriptedStatus answers notReady times with 404 (or a transport error when
// failWith is set) before answering 200.
type scriptedStatus struct {
	notReady int
	failWith error
	calls    int
	urls     []string
}

func (s *scriptedStatus) CheckStatus(_ context.Context, url string) (int, error) {
	s.calls++
	s.urls = append(s.urls, url)
	if s.notReady < 0 || s.calls <= s.notReady {
		if s.failWith != nil {
			return 0, s.failWith
		}
		return 404, nil
	}
	return 200, nil
}

type stubRequester struct {
	job   domain.JobHandle
	err   error
	calls int
}

func (s *stubRequester) RequestThredds(context.Context, domain.RequestDescriptor) (domain.JobHandle, error) {
	s.calls++
	return s.job, s.err
}

type stubCatalog struct {
	items []string
	urls  []string
}

func (s *stubCatalog) FetchCatalog(_ context.Context, url string) ([]string, error) {
	s.urls = append(s.urls, url)
	return s.items, nil
}

type stubVocab struct {
	rows []domain.VocabEntry
	err  error
	refs []string
}

func (s *stubVocab) Vocabulary(_ context.Context, ref domain.InstrumentRef) ([]domain.VocabEntry, error) {
	s.refs = append(s.refs, ref.String())
	return s.rows, s.err
}

// stubOpener serves datasets built on demand by URL.
type stubOpener struct {
	files map[string]func() *domain.Dataset
	urls  []string
}

func (s *stubOpener) Open(_ context.Context, url string) (*domain.Dataset, error) {
	s.urls = append(s.urls, url)
	build, ok := s.files[url]
	if !ok {
		return nil, fmt.Errorf("no such file %s", url)
	}
	return build(), nil
}

// metbkFile builds an obs-indexed file with NTP-second times.
func metbkFile(id string, times ...float64) func() *domain.Dataset {
	return func() *domain.Dataset {
		ds := domain.NewDataset(domain.DimObs)
		ds.Attrs[domain.AttrID] = id
		n := len(times)
		north := make([]float64, n)
		east := make([]float64, n)
		sst := make([]float64, n)
		for i, t := range times {
			north[i] = 3
			east[i] = 4
			sst[i] = t / 1e9
		}
		ds.Put(&domain.Variable{Name: "time", Dim: domain.DimObs, Values: append([]float64(nil), times...),
			Attrs: map[string]string{domain.AttrUnits: "seconds since 1900-01-01 0:00:00"}})
		ds.Put(&domain.Variable{Name: "northward_wind_velocity", Dim: domain.DimObs, Values: north})
		ds.Put(&domain.Variable{Name: "eastward_wind_velocity", Dim: domain.DimObs, Values: east})
		ds.Put(&domain.Variable{Name: "sea_surface_temperature", Dim: domain.DimObs, Values: sst,
			Attrs: map[string]string{domain.AttrLong: "Sea Surface Temperature", domain.AttrUnits: "ºC"}})
		ds.Put(&domain.Variable{Name: "lat", Values: []float64{40.1365}})
		return ds
	}
}

type memJournal struct {
	mu        sync.Mutex
	recs      []ports.JobRecord
	committed map[ports.JobID]bool
}

func newMemJournal() *memJournal {
	return &memJournal{committed: make(map[ports.JobID]bool)}
}

func (j *memJournal) Append(rec ports.JobRecord) (ports.JobID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return ports.JobID(len(j.recs)), nil
}

func (j *memJournal) Iterate(from ports.JobID, fn func(ports.JobID, ports.JobRecord, bool) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, rec := range j.recs {
		id := ports.JobID(i + 1)
		if id < from {
			continue
		}
		if err := fn(id, rec, j.committed[id]); err != nil {
			return err
		}
	}
	return nil
}

func (j *memJournal) Commit(id ports.JobID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if id == 0 || int(id) > len(j.recs) {
		return errors.New("unknown job")
	}
	j.committed[id] = true
	return nil
}

func (j *memJournal) Stats() ports.JournalStats { return ports.JournalStats{} }
func (j *memJournal) Close() error              { return nil }

type captureSink struct {
	sources []string
	rows    int
}

func (s *captureSink) WriteDataset(_ context.Context, source string, ds *domain.Dataset) (int, error) {
	s.sources = append(s.sources, source)
	s.rows += ds.Len()
	return ds.Len(), nil
}

func (s *captureSink) Name() string { return "capture" }

type mockObs struct {
	mu       sync.Mutex
	infos    []string
	errors   []error
	counters map[string]float64
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}
