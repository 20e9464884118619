package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

var (
	// ErrNotNetCDF is returned for an identifier that does not end in .nc.
	ErrNotNetCDF = domain.ErrNotNetCDF
	// ErrNoFiles is returned when there is nothing to assemble.
	ErrNoFiles = errors.New("no dataset files to assemble")
)

// Assembler opens catalog entries over OPeNDAP and merges them into one
// time-indexed dataset.
type Assembler struct {
	opener      ports.DatasetOpener
	vocab       ports.VocabularyLookup
	opendapBase string
	obs         ports.Observability
}

func NewAssembler(opener ports.DatasetOpener, vocab ports.VocabularyLookup, opendapBase string, obs ports.Observability) *Assembler {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Assembler{
		opener:      opener,
		vocab:       vocab,
		opendapBase: strings.TrimRight(opendapBase, "/"),
		obs:         obs,
	}
}

// AccessURLs maps catalog entries to <opendapBase>/<id>#fillmismatch.
func (a *Assembler) AccessURLs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, ErrNoFiles
	}
	if err := domain.RequireNetCDF(ids); err != nil {
		return nil, err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = a.opendapBase + "/" + id + "#fillmismatch"
	}
	return out, nil
}

// Assemble opens every file, concatenates them along the observation
// dimension, re-indexes on time, sorts ascending and sets Location_name.
func (a *Assembler) Assemble(ctx context.Context, ids []string) (*domain.Dataset, error) {
	urls, err := a.AccessURLs(ids)
	if err != nil {
		return nil, err
	}

	parts := make([]*domain.Dataset, 0, len(urls))
	for _, u := range urls {
		ds, err := a.opener.Open(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", u, err)
		}
		parts = append(parts, ds)
	}

	ds := concat(parts)
	ds.SwapDim(ds.Dim, domain.DimTime)
	if err := ds.DecodeTime(); err != nil {
		return nil, err
	}
	if err := ds.SortByTime(); err != nil {
		return nil, err
	}
	if n := ds.UnsetTimes(); n > 0 {
		a.obs.LogInfo("fill_timestamps", ports.Field{Key: "count", Value: n}, ports.Field{Key: "id", Value: ds.Attrs[domain.AttrID]})
	}

	ds.Attrs[domain.AttrLocName] = a.locationName(ctx, ds.Attrs[domain.AttrID])
	return ds, nil
}

// concat joins variables on the primary dimension that exist in every part.
// Everything else comes from the first part.
func concat(parts []*domain.Dataset) *domain.Dataset {
	first := parts[0]
	out := domain.NewDataset(first.Dim)
	for k, v := range first.Attrs {
		out.Attrs[k] = v
	}

	for _, v := range first.Vars() {
		if v.Dim != first.Dim {
			out.Put(v.Clone())
			continue
		}
		merged := v.Clone()
		shared := true
		for _, p := range parts[1:] {
			pv, ok := p.Var(v.Name)
			if !ok || pv.Dim != p.Dim {
				shared = false
				break
			}
			merged.Values = append(merged.Values, pv.Values...)
		}
		if shared {
			out.Put(merged)
		}
	}
	return out
}

// locationName looks up the taxonomy of the instrument named by the first
// four dash-separated fields of id. Any failure yields "Unknown".
func (a *Assembler) locationName(ctx context.Context, id string) string {
	if a.vocab == nil {
		return domain.UnknownLocation
	}
	ref, err := domain.RefDesFromID(id)
	if err != nil {
		return domain.UnknownLocation
	}
	rows, err := a.vocab.Vocabulary(ctx, ref)
	if err != nil {
		a.obs.LogError("vocab_lookup_failed", err, ports.Field{Key: "refdes", Value: ref.String()})
		return domain.UnknownLocation
	}
	return domain.LocationNameOf(rows)
}
