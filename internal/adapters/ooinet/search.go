package ooinet

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/reedan88/Isaias/internal/adapters/queue"
	"github.com/reedan88/Isaias/internal/domain"
)

// SearchQuery narrows a walk of the sensor inventory. Array is an exact
// path segment; Node and Instrument are partial codes matched as substrings.
type SearchQuery struct {
	Array        string
	Node         string
	Instrument   string
	EnglishNames bool
}

func (q SearchQuery) prefix() []string {
	if q.Array == "" {
		return []string{}
	}
	return []string{q.Array}
}

func (q SearchQuery) admits(segs []string) bool {
	if len(segs) >= 2 && q.Node != "" && !strings.Contains(segs[1], q.Node) {
		return false
	}
	if len(segs) == 3 && q.Instrument != "" && !strings.Contains(segs[2], q.Instrument) {
		return false
	}
	return true
}

// Search walks the inventory breadth first, one tree level per pass, and
// returns every instrument below the query prefix. With no prefix the whole
// inventory is walked, which is slow.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]domain.DatasetRef, error) {
	frontier := queue.NewMemQueue[[]string](0)
	frontier.Enqueue(q.prefix())

	var hits []domain.DatasetRef
	for frontier.Len() > 0 {
		for _, segs := range frontier.DequeueBatch(0) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if len(segs) == 3 {
				hit, err := c.leaf(ctx, segs)
				if err != nil {
					return nil, err
				}
				hits = append(hits, hit)
				continue
			}

			var children []string
			if err := c.getJSON(ctx, c.endpoint(sensorPath, segs...), &children); err != nil {
				return nil, err
			}
			for _, child := range children {
				next := append(append(make([]string, 0, len(segs)+1), segs...), child)
				if q.admits(next) {
					frontier.Enqueue(next)
				}
			}
		}
	}

	if q.EnglishNames {
		if err := c.annotate(ctx, hits); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func (c *Client) leaf(ctx context.Context, segs []string) (domain.DatasetRef, error) {
	ref := domain.InstrumentRef{Array: segs[0], Node: segs[1], Instrument: segs[2]}
	hit := domain.DatasetRef{Ref: ref, URL: c.endpoint(sensorPath, segs...)}
	nums, err := c.deploymentNumbers(ctx, ref)
	if err != nil && !isNotFound(err) {
		return domain.DatasetRef{}, err
	}
	hit.Deployments = nums
	return hit, nil
}

func (c *Client) annotate(ctx context.Context, hits []domain.DatasetRef) error {
	for i := range hits {
		rows, err := c.Vocabulary(ctx, hits[i].Ref)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return err
		}
		if len(rows) == 0 {
			continue
		}
		v := rows[0]
		hits[i].ArrayName = strings.TrimSpace(v.TocL1 + " " + v.TocL2)
		hits[i].NodeName = v.TocL3
		hits[i].InstrumentName = v.Instrument
	}
	return nil
}

func isNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
