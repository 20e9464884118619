package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Well-known names used by the OOI netCDF products.
const (
	DimObs      = "obs"
	DimTime     = "time"
	VarTime     = "time"
	AttrID      = "id"
	AttrUnits   = "units"
	AttrLong    = "long_name"
	AttrStd     = "standard_name"
	AttrFill    = "_FillValue"
	AttrLocName = "Location_name"
)

var (
	ErrNoTimeVariable = errors.New("dataset has no time variable")
	ErrTimeUnits      = errors.New("unsupported time units")
	ErrLengthMismatch = errors.New("variable length does not match time")
)

// Variable is a one-dimensional measurement (or a scalar when Dim is empty).
type Variable struct {
	Name   string            `json:"name"`
	Dim    string            `json:"dim,omitempty"`
	Values []float64         `json:"values"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// Attr returns an attribute value or "".
func (v *Variable) Attr(key string) string {
	if v == nil || v.Attrs == nil {
		return ""
	}
	return v.Attrs[key]
}

// Label is the human readable name: long_name, then standard_name, then Name.
func (v *Variable) Label() string {
	if s := v.Attr(AttrLong); s != "" {
		return s
	}
	if s := v.Attr(AttrStd); s != "" {
		return s
	}
	return v.Name
}

// Clone deep-copies the variable.
func (v *Variable) Clone() *Variable {
	out := &Variable{Name: v.Name, Dim: v.Dim}
	out.Values = append([]float64(nil), v.Values...)
	out.Attrs = cloneAttrs(v.Attrs)
	return out
}

// Dataset is a set of variables sharing a primary dimension. After assembly the
// primary dimension is "time" and Time holds the decoded, ascending timestamps.
type Dataset struct {
	Dim   string            `json:"dim"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Time  []time.Time       `json:"time,omitempty"`

	vars  map[string]*Variable
	order []string
}

// NewDataset returns an empty dataset indexed by dim.
func NewDataset(dim string) *Dataset {
	return &Dataset{
		Dim:   dim,
		Attrs: make(map[string]string),
		vars:  make(map[string]*Variable),
	}
}

// Put adds or replaces a variable, keeping first-insertion order.
func (d *Dataset) Put(v *Variable) {
	if d.vars == nil {
		d.vars = make(map[string]*Variable)
	}
	if _, ok := d.vars[v.Name]; !ok {
		d.order = append(d.order, v.Name)
	}
	d.vars[v.Name] = v
}

// Var looks up a variable by name.
func (d *Dataset) Var(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Vars returns the variables in insertion order.
func (d *Dataset) Vars() []*Variable {
	out := make([]*Variable, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.vars[name])
	}
	return out
}

// Names returns the variable names in insertion order.
func (d *Dataset) Names() []string {
	return append([]string(nil), d.order...)
}

// Len is the length of the primary dimension.
func (d *Dataset) Len() int {
	if len(d.Time) > 0 {
		return len(d.Time)
	}
	for _, name := range d.order {
		if v := d.vars[name]; v.Dim == d.Dim {
			return len(v.Values)
		}
	}
	return 0
}

// SwapDim moves every variable indexed by from onto to, the equivalent of
// making a coordinate the primary dimension.
func (d *Dataset) SwapDim(from, to string) {
	for _, v := range d.vars {
		if v.Dim == from {
			v.Dim = to
		}
	}
	if d.Dim == from {
		d.Dim = to
	}
}

// DecodeTime converts the time variable using its CF units attribute.
func (d *Dataset) DecodeTime() error {
	tv, ok := d.vars[VarTime]
	if !ok {
		return ErrNoTimeVariable
	}
	ts, err := DecodeCFTime(tv.Values, tv.Attr(AttrUnits))
	if err != nil {
		return fmt.Errorf("decode %s: %w", VarTime, err)
	}
	d.Time = ts
	return nil
}

// SortByTime stably reorders every primary-dimension variable by Time.
// Unset (fill) timestamps sort last. Every primary-dimension variable must
// have one value per timestamp.
func (d *Dataset) SortByTime() error {
	n := len(d.Time)
	for _, name := range d.order {
		v := d.vars[name]
		if v.Dim == d.Dim && len(v.Values) != n {
			return fmt.Errorf("%w: %s has %d values, time has %d", ErrLengthMismatch, name, len(v.Values), n)
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return timeLess(d.Time[idx[a]], d.Time[idx[b]]) })

	sorted := true
	for i, j := range idx {
		if i != j {
			sorted = false
			break
		}
	}
	if sorted {
		return nil
	}

	ts := make([]time.Time, n)
	for i, j := range idx {
		ts[i] = d.Time[j]
	}
	d.Time = ts
	for _, v := range d.vars {
		if v.Dim != d.Dim {
			continue
		}
		vals := make([]float64, n)
		for i, j := range idx {
			vals[i] = v.Values[j]
		}
		v.Values = vals
	}
	return nil
}

func timeLess(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}

// IsTimeSorted reports whether Time is non-decreasing with unset timestamps
// only at the end.
func (d *Dataset) IsTimeSorted() bool {
	for i := 1; i < len(d.Time); i++ {
		if timeLess(d.Time[i], d.Time[i-1]) {
			return false
		}
	}
	return true
}

// UnsetTimes counts timestamps that decoded from a fill value.
func (d *Dataset) UnsetTimes() int {
	n := 0
	for _, t := range d.Time {
		if t.IsZero() {
			n++
		}
	}
	return n
}

// Row returns the non-NaN primary-dimension values at index i, keyed by name.
func (d *Dataset) Row(i int) map[string]float64 {
	out := make(map[string]float64)
	for _, name := range d.order {
		v := d.vars[name]
		if v.Dim != d.Dim || name == VarTime || i >= len(v.Values) {
			continue
		}
		if math.IsNaN(v.Values[i]) || math.IsInf(v.Values[i], 0) {
			continue
		}
		out[name] = v.Values[i]
	}
	return out
}

var cfUnitsRe = regexp.MustCompile(`^\s*(\w+)\s+since\s+(.+?)\s*$`)

// DecodeCFTime converts numeric offsets with units like
// "seconds since 1900-01-01 0:00:00" into UTC timestamps. NaN offsets decode
// to the zero time.
func DecodeCFTime(values []float64, units string) ([]time.Time, error) {
	m := cfUnitsRe.FindStringSubmatch(units)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrTimeUnits, units)
	}

	var scale time.Duration
	switch strings.ToLower(m[1]) {
	case "seconds", "second", "secs", "sec", "s":
		scale = time.Second
	case "milliseconds", "millisecond", "msec", "ms":
		scale = time.Millisecond
	case "minutes", "minute", "mins", "min":
		scale = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		scale = time.Hour
	case "days", "day", "d":
		scale = 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: %q", ErrTimeUnits, units)
	}

	epoch, err := parseEpoch(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrTimeUnits, units)
	}

	out := make([]time.Time, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		whole, frac := math.Modf(v)
		out[i] = epoch.Add(time.Duration(whole) * scale).Add(time.Duration(frac * float64(scale)))
	}
	return out, nil
}

func parseEpoch(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	s = strings.TrimSuffix(s, " UTC")
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006-1-2 15:04:05",
		"2006-1-2",
	}
	// OOI writes single-digit hours ("1900-01-01 0:00:00").
	s = padClock(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable epoch %q", s)
}

func padClock(s string) string {
	date, clock, ok := strings.Cut(s, " ")
	if !ok {
		return s
	}
	if h, rest, ok := strings.Cut(clock, ":"); ok && len(h) == 1 {
		return date + " 0" + h + ":" + rest
	}
	return s
}

// NTPEpoch is the origin of the OOI "seconds since 1900-01-01" timestamps.
var NTPEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// NTPSecondsToTime converts NTP seconds to a UTC time.
func NTPSecondsToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return NTPEpoch.Add(time.Duration(whole) * time.Second).Add(time.Duration(frac * float64(time.Second)))
}

func cloneAttrs(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
