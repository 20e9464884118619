package ooinet

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
)

type wireMetadata struct {
	Times []struct {
		Stream    string `json:"stream"`
		Method    string `json:"method"`
		BeginTime string `json:"beginTime"`
		EndTime   string `json:"endTime"`
		Count     int64  `json:"count"`
	} `json:"times"`
	Parameters []struct {
		PdID        string `json:"pdId"`
		ParticleKey string `json:"particleKey"`
		Type        string `json:"type"`
		Shape       string `json:"shape"`
		Units       string `json:"units"`
		Stream      string `json:"stream"`
		DisplayName string `json:"displayName"`
	} `json:"parameters"`
}

// Metadata returns every parameter of an instrument joined with the time
// coverage of its stream. Duplicate rows are dropped.
func (c *Client) Metadata(ctx context.Context, ref domain.InstrumentRef) ([]domain.ParameterInfo, error) {
	var raw wireMetadata
	if err := c.getJSON(ctx, c.endpoint(sensorPath, append(ref.Segments(), "metadata")...), &raw); err != nil {
		return nil, err
	}

	seen := make(map[domain.ParameterInfo]struct{})
	out := make([]domain.ParameterInfo, 0, len(raw.Parameters))
	for _, p := range raw.Parameters {
		for _, t := range raw.Times {
			if t.Stream != p.Stream {
				continue
			}
			row := domain.ParameterInfo{
				RefDes:      ref.String(),
				Stream:      p.Stream,
				Method:      t.Method,
				ParticleKey: p.ParticleKey,
				PdID:        p.PdID,
				Units:       p.Units,
				Type:        p.Type,
				Shape:       p.Shape,
				DisplayName: p.DisplayName,
				BeginTime:   parseISO(t.BeginTime),
				EndTime:     parseISO(t.EndTime),
				Count:       t.Count,
			}
			if _, dup := seen[row]; dup {
				continue
			}
			seen[row] = struct{}{}
			out = append(out, row)
		}
	}
	return out, nil
}

// ParameterDataLevels looks up the preload data level of each distinct
// parameter id ("PD7" style).
func (c *Client) ParameterDataLevels(ctx context.Context, params []domain.ParameterInfo) (map[string]int, error) {
	ids := make([]string, 0, len(params))
	levels := make(map[string]int)
	for _, p := range params {
		if _, ok := levels[p.PdID]; ok || p.PdID == "" {
			continue
		}
		levels[p.PdID] = 0
		ids = append(ids, p.PdID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var preload struct {
			DataLevel *int `json:"data_level"`
		}
		if err := c.getJSON(ctx, c.endpoint(preloadPath, strings.TrimPrefix(id, "PD")), &preload); err != nil {
			return nil, fmt.Errorf("preload %s: %w", id, err)
		}
		if preload.DataLevel != nil {
			levels[id] = *preload.DataLevel
		}
	}
	return levels, nil
}

// ProcessedOnly keeps the parameters whose data level is 1.
func ProcessedOnly(params []domain.ParameterInfo, levels map[string]int) []domain.ParameterInfo {
	out := make([]domain.ParameterInfo, 0, len(params))
	for _, p := range params {
		if levels[p.PdID] == 1 {
			out = append(out, p)
		}
	}
	return out
}

func parseISO(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
