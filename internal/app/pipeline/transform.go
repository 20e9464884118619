package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// ErrMissingVariable is returned when a transformer's inputs are absent.
var ErrMissingVariable = errors.New("missing input variable")

// WindSpeed derives the horizontal wind magnitude from its north and east
// components.
type WindSpeed struct {
	North  string
	East   string
	Output string
}

func NewWindSpeed() *WindSpeed {
	return &WindSpeed{
		North:  "northward_wind_velocity",
		East:   "eastward_wind_velocity",
		Output: "wind_speed",
	}
}

func (w *WindSpeed) Name() string { return "wind_speed" }

func (w *WindSpeed) Transform(ds *domain.Dataset) error {
	n, ok := ds.Var(w.North)
	if !ok {
		return fmt.Errorf("%s: %w: %s", w.Name(), ErrMissingVariable, w.North)
	}
	e, ok := ds.Var(w.East)
	if !ok {
		return fmt.Errorf("%s: %w: %s", w.Name(), ErrMissingVariable, w.East)
	}
	if len(n.Values) != len(e.Values) {
		return fmt.Errorf("%s: %s and %s differ in length", w.Name(), w.North, w.East)
	}

	vals := make([]float64, len(n.Values))
	for i := range vals {
		vals[i] = math.Hypot(n.Values[i], e.Values[i])
	}
	ds.Put(&domain.Variable{
		Name:   w.Output,
		Dim:    n.Dim,
		Values: vals,
		Attrs: map[string]string{
			domain.AttrLong:  "Wind Speed",
			domain.AttrUnits: "m s-1",
		},
	})
	return nil
}

// TransformerByName resolves the names accepted in a target's derive list.
func TransformerByName(name string) (ports.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wind_speed":
		return NewWindSpeed(), nil
	default:
		return nil, fmt.Errorf("unknown derived variable %q", name)
	}
}

var _ ports.Transformer = (*WindSpeed)(nil)
