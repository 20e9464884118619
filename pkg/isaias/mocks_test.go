package isaias

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
)

const (
	metbkRefDes = "CP01CNSM-SBD11-06-METBKA000"
	metbkID     = "CP01CNSM-SBD11-06-METBKA000-telemetered-metbk_a_dcl_instrument"
	jobPath     = "ooi/jdoe@whoi.edu/20200804T120000-CP01CNSM-SBD11-06-METBKA000-telemetered-metbk_a_dcl_instrument"
)

// ooiFile is one netCDF file on the fake OPeNDAP server.
type ooiFile struct {
	name  string
	times []float64
}

func (f ooiFile) entry() string { return jobPath + "/" + f.name }

func (f ooiFile) das() string {
	return `Attributes {
    time {
        String units "seconds since 1900-01-01 0:00:00";
        String long_name "time";
    }
    sea_surface_temperature {
        Float32 _FillValue -9999999.0;
        String long_name "Sea Surface Temperature";
        String units "ºC";
    }
    met_salsurf {
        String long_name "Sea Surface Salinity";
        String units "1";
    }
    northward_wind_velocity {
        String units "m s-1";
    }
    eastward_wind_velocity {
        String units "m s-1";
    }
    NC_GLOBAL {
        String id "` + metbkID + `";
    }
}
`
}

func (f ooiFile) ascii() string {
	n := len(f.times)
	series := func(fn func(i int, t float64) float64) string {
		parts := make([]string, n)
		for i, t := range f.times {
			parts[i] = fmt.Sprintf("%g", fn(i, t))
		}
		return strings.Join(parts, ", ")
	}

	var b strings.Builder
	b.WriteString("Dataset {\n")
	for _, v := range []string{"Float64 time", "Float32 sea_surface_temperature", "Float32 met_salsurf", "Float32 northward_wind_velocity", "Float32 eastward_wind_velocity"} {
		fmt.Fprintf(&b, "    %s[obs = %d];\n", v, n)
	}
	fmt.Fprintf(&b, "} %s;\n", f.entry())
	b.WriteString("---------------------------------------------\n")
	fmt.Fprintf(&b, "time[%d]\n%s\n\n", n, series(func(_ int, t float64) float64 { return t }))
	fmt.Fprintf(&b, "sea_surface_temperature[%d]\n%s\n\n", n, series(func(i int, t float64) float64 { return 20 + float64(i) }))
	fmt.Fprintf(&b, "met_salsurf[%d]\n%s\n\n", n, series(func(int, float64) float64 { return 32.5 }))
	fmt.Fprintf(&b, "northward_wind_velocity[%d]\n%s\n\n", n, series(func(int, float64) float64 { return 3 }))
	fmt.Fprintf(&b, "eastward_wind_velocity[%d]\n%s\n", n, series(func(int, float64) float64 { return 4 }))
	return b.String()
}

// ooiServer fakes the M2M API, the THREDDS catalog and the OPeNDAP server on
// one httptest listener.
type ooiServer struct {
	*httptest.Server

	notReady int
	files    []ooiFile
	extra    []string

	mu       sync.Mutex
	requests int
	probes   int
	opened   []string
	auth     []string
	queries  []string
}

func newOOIServer(t *testing.T, notReady int, files []ooiFile, extra ...string) *ooiServer {
	t.Helper()
	s := &ooiServer{notReady: notReady, files: files, extra: extra}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *ooiServer) threddsURL() string {
	return s.URL + "/thredds/catalog/" + jobPath + "/catalog.html"
}

func (s *ooiServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := r.URL.Path
	switch {
	case p == "/api/m2m/12576/sensor/inv/CP01CNSM/SBD11/06-METBKA000/telemetered/metbk_a_dcl_instrument":
		s.requests++
		user, pass, _ := r.BasicAuth()
		s.auth = append(s.auth, user+":"+pass)
		s.queries = append(s.queries, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"requestUUID": "e1c5a0b6",
			"allURLs":     []string{s.threddsURL(), s.URL + "/async_results/jdoe@whoi.edu/20200804T120000"},
		})

	case p == "/api/m2m/12586/vocab/inv/CP01CNSM/SBD11/06-METBKA000":
		_ = json.NewEncoder(w).Encode([]domain.VocabEntry{{
			RefDes:     metbkRefDes,
			Instrument: "Bulk Meteorology Instrument Package",
			TocL1:      "Coastal Pioneer",
			TocL2:      "Central Surface Mooring",
		}})

	case p == "/thredds/catalog/"+jobPath+"/catalog.html":
		if r.URL.Query().Get("dataset") != jobPath+"/status.txt" {
			http.Error(w, "bad dataset", http.StatusBadRequest)
			return
		}
		s.probes++
		if s.probes <= s.notReady {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("complete"))

	case p == "/thredds/"+jobPath+"/catalog.xml":
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<catalog xmlns="http://www.unidata.ucar.edu/namespaces/thredds/InvCatalog/v1.0" name="THREDDS">
  <dataset name="` + jobPath + `">
`)
		for _, f := range s.files {
			fmt.Fprintf(&b, "    <dataset name=%q urlPath=%q />\n", f.name, f.entry())
		}
		for _, e := range s.extra {
			fmt.Fprintf(&b, "    <dataset name=%q urlPath=%q />\n", e, jobPath+"/"+e)
		}
		b.WriteString("  </dataset>\n</catalog>\n")
		_, _ = w.Write([]byte(b.String()))

	case strings.HasPrefix(p, "/thredds/dodsC/"):
		entry := strings.TrimPrefix(p, "/thredds/dodsC/")
		for _, f := range s.files {
			switch entry {
			case f.entry() + ".das":
				s.opened = append(s.opened, f.name)
				_, _ = w.Write([]byte(f.das()))
				return
			case f.entry() + ".ascii":
				_, _ = w.Write([]byte(f.ascii()))
				return
			}
		}
		http.NotFound(w, r)

	default:
		http.NotFound(w, r)
	}
}

func (s *ooiServer) stats() (requests, probes int, opened []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.probes, append([]string(nil), s.opened...)
}

type stubObservability struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	errors   []string
}

func (s *stubObservability) LogInfo(string, ...Field) {}

func (s *stubObservability) LogError(msg string, err error, _ ...Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Sprintf("%s: %v", msg, err))
}

func (s *stubObservability) LogCritical(msg string, err error, fields ...Field) {
	s.LogError(msg, err, fields...)
}

func (s *stubObservability) IncCounter(name string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		s.counters = make(map[string]float64)
	}
	s.counters[name] += v
}

func (s *stubObservability) ObserveLatency(string, float64) {}

func (s *stubObservability) SetGauge(name string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gauges == nil {
		s.gauges = make(map[string]float64)
	}
	s.gauges[name] = v
}

func (s *stubObservability) counter(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

func (s *stubObservability) gauge(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.gauges[name]
	return v, ok
}

type stubSink struct {
	mu      sync.Mutex
	sources []string
	rows    int
}

func (s *stubSink) WriteDataset(_ context.Context, source string, ds *Dataset) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, source)
	s.rows += ds.Len()
	return ds.Len(), nil
}

func (s *stubSink) Name() string { return "stub" }

type stubJournal struct{}

func (stubJournal) Append(JobRecord) (JobID, error)                         { return 1, nil }
func (stubJournal) Iterate(JobID, func(JobID, JobRecord, bool) error) error { return nil }
func (stubJournal) Commit(JobID) error                                      { return nil }
func (stubJournal) Stats() JournalStats                                     { return JournalStats{} }
func (stubJournal) Close() error                                            { return nil }

type stubRequester struct{ calls int }

func (s *stubRequester) RequestThredds(context.Context, RequestDescriptor) (JobHandle, error) {
	s.calls++
	return JobHandle{}, fmt.Errorf("unexpected request")
}

type upperTransformer struct{}

func (upperTransformer) Transform(*Dataset) error { return nil }
func (upperTransformer) Name() string             { return "Wind_Speed" }

// metbkTimes returns NTP seconds for hourly samples starting at h hours after
// 2020-08-04T00:00Z.
func metbkTimes(h ...int) []float64 {
	base := time.Date(2020, 8, 4, 0, 0, 0, 0, time.UTC).Sub(domain.NTPEpoch).Seconds()
	out := make([]float64, len(h))
	for i, v := range h {
		out[i] = base + float64(v)*3600
	}
	return out
}
