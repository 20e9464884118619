package domain

import (
	"strings"
	"time"
)

// UnknownLocation is used when the vocabulary service has nothing for a
// reference designator.
const UnknownLocation = "Unknown"

// VocabEntry is one row of the vocabulary service response.
type VocabEntry struct {
	RefDes     string `json:"refdes"`
	Instrument string `json:"instrument"`
	TocL1      string `json:"tocL1"`
	TocL2      string `json:"tocL2"`
	TocL3      string `json:"tocL3"`
}

// LocationName joins the three taxonomy levels, skipping blanks.
func (v VocabEntry) LocationName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.TocL1, v.TocL2, v.TocL3} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// LocationNameOf returns the first row's location name, or UnknownLocation.
func LocationNameOf(rows []VocabEntry) string {
	if len(rows) == 0 {
		return UnknownLocation
	}
	if name := rows[0].LocationName(); name != "" {
		return name
	}
	return UnknownLocation
}

// Deployment is one deployment of an instrument.
type Deployment struct {
	RefDes        string    `json:"refdes"`
	Number        int       `json:"deployment_number"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Depth         float64   `json:"depth"`
	Start         time.Time `json:"deploy_start"`
	End           time.Time `json:"deploy_end,omitempty"`
	DeployCruise  string    `json:"deploy_cruise,omitempty"`
	RecoverCruise string    `json:"recover_cruise,omitempty"`
}

// StreamInfo links a reference designator to one of its method/stream pairs.
type StreamInfo struct {
	RefDes string `json:"refdes"`
	Method string `json:"method"`
	Stream string `json:"stream"`
}

// ParameterInfo is one parameter row of the instrument metadata merged with
// the time coverage of its stream.
type ParameterInfo struct {
	RefDes      string    `json:"refdes"`
	Stream      string    `json:"stream"`
	Method      string    `json:"method"`
	ParticleKey string    `json:"particle_key"`
	PdID        string    `json:"pd_id"`
	Units       string    `json:"units"`
	Type        string    `json:"type"`
	Shape       string    `json:"shape"`
	DisplayName string    `json:"display_name"`
	BeginTime   time.Time `json:"begin_time"`
	EndTime     time.Time `json:"end_time"`
	Count       int64     `json:"count"`
}

// DatasetRef is a search hit: an instrument known to the inventory.
type DatasetRef struct {
	Ref            InstrumentRef `json:"ref"`
	URL            string        `json:"url"`
	ArrayName      string        `json:"array_name,omitempty"`
	NodeName       string        `json:"node_name,omitempty"`
	InstrumentName string        `json:"instrument_name,omitempty"`
	Deployments    []int         `json:"deployments,omitempty"`
}
