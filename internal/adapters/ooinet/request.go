package ooinet

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// TimeLayout is the timestamp format accepted by beginDT and endDT.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ErrNoThreddsURL is returned when a successful data request lists no THREDDS URL.
var ErrNoThreddsURL = errors.New("ooinet: no thredds url in response")

// RequestError is a non-200 answer from the data request endpoint.
type RequestError struct {
	StatusCode int
	Reason     string
	URL        string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ooinet: request %s failed: %d %s", e.URL, e.StatusCode, e.Reason)
}

type dataResponse struct {
	RequestUUID string   `json:"requestUUID"`
	AllURLs     []string `json:"allURLs"`
}

// DataRequestURL builds <base>/12576/sensor/inv/<array>/<node>/<instrument>/<method>/<stream>
// with the optional query parameters.
func (c *Client) DataRequestURL(d domain.RequestDescriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	parts := append(d.Ref.Segments(), d.Method, d.Stream)
	u := c.endpoint(sensorPath, parts...)

	q := url.Values{}
	if !d.Begin.IsZero() {
		q.Set("beginDT", d.Begin.UTC().Format(TimeLayout))
	}
	if !d.End.IsZero() {
		q.Set("endDT", d.End.UTC().Format(TimeLayout))
	}
	if d.Format != "" {
		q.Set("format", d.Format)
	}
	if d.IncludeProvenance {
		q.Set("include_provenance", "true")
	}
	if d.IncludeAnnotations {
		q.Set("include_annotations", "true")
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

// RequestThredds submits the asynchronous request and returns the first
// THREDDS URL listed in allURLs.
func (c *Client) RequestThredds(ctx context.Context, d domain.RequestDescriptor) (domain.JobHandle, error) {
	u, err := c.DataRequestURL(d)
	if err != nil {
		return domain.JobHandle{}, err
	}

	var resp dataResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return domain.JobHandle{}, err
	}

	for _, candidate := range resp.AllURLs {
		if strings.Contains(candidate, "thredds") {
			h := domain.JobHandle{ThreddsURL: candidate}
			if id, err := DatasetID(candidate); err == nil {
				h.DatasetID = id
			}
			return h, nil
		}
	}
	return domain.JobHandle{}, fmt.Errorf("%w: %s", ErrNoThreddsURL, u)
}

var _ ports.DataRequester = (*Client)(nil)
