package ooinet

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// AllDeployments requests every deployment of an instrument.
const AllDeployments = -1

// Vocabulary returns the vocabulary rows for an instrument. An empty slice is
// a valid answer.
func (c *Client) Vocabulary(ctx context.Context, ref domain.InstrumentRef) ([]domain.VocabEntry, error) {
	rows := make([]domain.VocabEntry, 0)
	if err := c.getJSON(ctx, c.endpoint(vocabPath, ref.Segments()...), &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].RefDes == "" {
			rows[i].RefDes = ref.String()
		}
	}
	return rows, nil
}

type wireCruise struct {
	UniqueCruiseIdentifier string `json:"uniqueCruiseIdentifier"`
}

type wireDeployment struct {
	DeploymentNumber int `json:"deploymentNumber"`
	Location         struct {
		Depth     float64 `json:"depth"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	EventStartTime    *int64      `json:"eventStartTime"`
	EventStopTime     *int64      `json:"eventStopTime"`
	DeployCruiseInfo  *wireCruise `json:"deployCruiseInfo"`
	RecoverCruiseInfo *wireCruise `json:"recoverCruiseInfo"`
}

// Deployments returns deployment details sorted by deployment number. Pass
// AllDeployments for the full history.
func (c *Client) Deployments(ctx context.Context, ref domain.InstrumentRef, number int) ([]domain.Deployment, error) {
	var raw []wireDeployment
	u := c.endpoint(deployPath, append(ref.Segments(), strconv.Itoa(number))...)
	if err := c.getJSON(ctx, u, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Deployment, 0, len(raw))
	for _, d := range raw {
		dep := domain.Deployment{
			RefDes:    ref.String(),
			Number:    d.DeploymentNumber,
			Latitude:  d.Location.Latitude,
			Longitude: d.Location.Longitude,
			Depth:     d.Location.Depth,
			Start:     millisToTime(d.EventStartTime),
			End:       millisToTime(d.EventStopTime),
		}
		if d.DeployCruiseInfo != nil {
			dep.DeployCruise = d.DeployCruiseInfo.UniqueCruiseIdentifier
		}
		if d.RecoverCruiseInfo != nil {
			dep.RecoverCruise = d.RecoverCruiseInfo.UniqueCruiseIdentifier
		}
		out = append(out, dep)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// deploymentNumbers lists the deployment numbers known for an instrument.
func (c *Client) deploymentNumbers(ctx context.Context, ref domain.InstrumentRef) ([]int, error) {
	var nums []int
	if err := c.getJSON(ctx, c.endpoint(deployPath, ref.Segments()...), &nums); err != nil {
		return nil, err
	}
	return nums, nil
}

// Streams lists the method/stream pairs of an instrument. Methods flagged
// "bad" by the data team are skipped.
func (c *Client) Streams(ctx context.Context, ref domain.InstrumentRef) ([]domain.StreamInfo, error) {
	var methods []string
	base := ref.Segments()
	if err := c.getJSON(ctx, c.endpoint(sensorPath, base...), &methods); err != nil {
		return nil, err
	}

	out := make([]domain.StreamInfo, 0, len(methods))
	for _, method := range methods {
		if strings.Contains(method, "bad") {
			continue
		}
		var streams []string
		if err := c.getJSON(ctx, c.endpoint(sensorPath, append(ref.Segments(), method)...), &streams); err != nil {
			return nil, err
		}
		for _, s := range streams {
			out = append(out, domain.StreamInfo{RefDes: ref.String(), Method: method, Stream: s})
		}
	}
	return out, nil
}

func millisToTime(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms).UTC()
}

var _ ports.VocabularyLookup = (*Client)(nil)
