package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidRefDes is returned when a reference designator does not split into
// array, node and instrument.
var ErrInvalidRefDes = errors.New("invalid reference designator")

// InstrumentRef addresses one sensor on the observatory. The instrument part may
// itself contain dashes (e.g. "06-METBKA000").
type InstrumentRef struct {
	Array      string `json:"array"`
	Node       string `json:"node"`
	Instrument string `json:"instrument"`
}

// ParseRefDes splits "<array>-<node>-<instrument>" on its first two dashes.
func ParseRefDes(refdes string) (InstrumentRef, error) {
	parts := strings.SplitN(strings.TrimSpace(refdes), "-", 3)
	if len(parts) != 3 {
		return InstrumentRef{}, fmt.Errorf("%w: %q", ErrInvalidRefDes, refdes)
	}
	for _, p := range parts {
		if p == "" {
			return InstrumentRef{}, fmt.Errorf("%w: %q", ErrInvalidRefDes, refdes)
		}
	}
	return InstrumentRef{Array: parts[0], Node: parts[1], Instrument: parts[2]}, nil
}

// String returns the dashed reference designator.
func (r InstrumentRef) String() string {
	return r.Array + "-" + r.Node + "-" + r.Instrument
}

// RefDesFromID reads the reference designator at the front of a dataset id
// such as "CP01CNSM-SBD11-06-METBKA000-recovered_host-metbk_a_dcl_instrument_recovered".
func RefDesFromID(id string) (InstrumentRef, error) {
	fields := strings.Split(id, "-")
	if len(fields) < 4 {
		return InstrumentRef{}, fmt.Errorf("%w: %q", ErrInvalidRefDes, id)
	}
	return ParseRefDes(strings.Join(fields[:4], "-"))
}

// Segments returns the path segments used by the M2M inventory endpoints.
func (r InstrumentRef) Segments() []string {
	return []string{r.Array, r.Node, r.Instrument}
}

// RequestDescriptor is everything needed to issue one asynchronous data request.
type RequestDescriptor struct {
	Ref    InstrumentRef
	Method string
	Stream string

	// Zero values mean "unbounded".
	Begin time.Time
	End   time.Time

	Format             string
	IncludeProvenance  bool
	IncludeAnnotations bool
}

// Validate checks the fields the inventory path is built from.
func (d RequestDescriptor) Validate() error {
	if d.Ref.Array == "" || d.Ref.Node == "" || d.Ref.Instrument == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRefDes, d.Ref.String())
	}
	if strings.TrimSpace(d.Method) == "" {
		return errors.New("method is required")
	}
	if strings.TrimSpace(d.Stream) == "" {
		return errors.New("stream is required")
	}
	if !d.Begin.IsZero() && !d.End.IsZero() && d.End.Before(d.Begin) {
		return fmt.Errorf("end %s is before begin %s", d.End.Format(time.RFC3339), d.Begin.Format(time.RFC3339))
	}
	return nil
}

// Key identifies equivalent requests. Two descriptors with the same key would
// produce the same server-side job.
func (d RequestDescriptor) Key() string {
	var b strings.Builder
	b.WriteString(d.Ref.String())
	b.WriteString("|")
	b.WriteString(d.Method)
	b.WriteString("|")
	b.WriteString(d.Stream)
	b.WriteString("|")
	if !d.Begin.IsZero() {
		b.WriteString(d.Begin.UTC().Format(time.RFC3339))
	}
	b.WriteString("|")
	if !d.End.IsZero() {
		b.WriteString(d.End.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// JobHandle is the server-issued URL of an in-progress data preparation job.
type JobHandle struct {
	ThreddsURL string `json:"thredds_url"`
	DatasetID  string `json:"dataset_id"`
}

// ErrMalformedThreddsURL is returned when a THREDDS URL has no ooi/.../catalog segment.
var ErrMalformedThreddsURL = errors.New("malformed thredds url")

var datasetIDRe = regexp.MustCompile(`(ooi/.*)/catalog`)

// DatasetID extracts the job id ("ooi/<user>/<request>") from a THREDDS URL.
func DatasetID(threddsURL string) (string, error) {
	m := datasetIDRe.FindStringSubmatch(threddsURL)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedThreddsURL, threddsURL)
	}
	return m[1], nil
}

// StatusURL is the file that appears once the job has finished.
func StatusURL(threddsURL, datasetID string) string {
	return threddsURL + "?dataset=" + datasetID + "/status.txt"
}

// CatalogURL is the XML catalog of a finished job.
func CatalogURL(server, datasetID string) string {
	if !strings.HasSuffix(server, "/") {
		server += "/"
	}
	return server + datasetID + "/catalog.xml"
}
