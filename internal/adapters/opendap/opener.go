package opendap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// FillMismatchFragment asks the opener to tolerate _FillValue attributes whose
// type differs from their variable.
const FillMismatchFragment = "fillmismatch"

// ErrFillMismatch is returned for a mistyped _FillValue when the URL does not
// carry #fillmismatch.
var ErrFillMismatch = errors.New("opendap: _FillValue type does not match variable")

// ErrTooLarge is returned for a response body above the opener's limit.
var ErrTooLarge = errors.New("opendap: response too large")

const maxBody = 512 << 20

// Opener reads OPeNDAP URLs through the .das and .ascii responses.
type Opener struct {
	http  *http.Client
	limit int64
}

func NewOpener(hc *http.Client) *Opener {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Opener{http: hc, limit: maxBody}
}

// Open loads every scalar and one-dimensional numeric variable of the file.
// Values equal to a variable's _FillValue become NaN.
func (o *Opener) Open(ctx context.Context, rawURL string) (*domain.Dataset, error) {
	base, frag, _ := strings.Cut(rawURL, "#")
	lenient := frag == FillMismatchFragment

	das, err := o.get(ctx, base+".das")
	if err != nil {
		return nil, err
	}
	attrs, err := ParseDAS(das)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}

	body, err := o.get(ctx, base+".ascii")
	if err != nil {
		return nil, err
	}
	decls, values, err := ParseASCII(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}

	return build(decls, values, attrs, lenient)
}

func build(decls []Decl, values map[string][]float64, attrs AttrTable, lenient bool) (*domain.Dataset, error) {
	dim := domain.DimObs
	for _, d := range decls {
		if len(d.Dims) == 1 && d.Dims[0].Name != "" {
			dim = d.Dims[0].Name
			break
		}
	}

	ds := domain.NewDataset(dim)
	for name, a := range attrs[GlobalContainer] {
		ds.Attrs[name] = a.Value
	}

	for _, d := range decls {
		v := &domain.Variable{
			Name:   d.Name,
			Values: values[d.Name],
			Attrs:  make(map[string]string),
		}
		if len(d.Dims) == 1 {
			v.Dim = d.Dims[0].Name
			if v.Dim == "" {
				v.Dim = dim
			}
		}
		for k, a := range attrs[d.Name] {
			v.Attrs[k] = a.Value
		}
		if fill, ok := attrs[d.Name][domain.AttrFill]; ok {
			if err := applyFill(d, v, fill, lenient); err != nil {
				return nil, err
			}
		}
		ds.Put(v)
	}
	return ds, nil
}

func applyFill(d Decl, v *domain.Variable, fill Attribute, lenient bool) error {
	fv, err := strconv.ParseFloat(strings.TrimSpace(fill.Value), 64)
	if fill.Type != d.Type || err != nil {
		if !lenient {
			return fmt.Errorf("%w: %s is %s, _FillValue is %s %q", ErrFillMismatch, d.Name, d.Type, fill.Type, fill.Value)
		}
		if err != nil {
			return nil
		}
	}
	single := d.Type == "Float32"
	for i, x := range v.Values {
		if x == fv || (single && float32(x) == float32(fv)) {
			v.Values[i] = math.NaN()
		}
	}
	return nil
}

func (o *Opener) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("opendap: new request: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("opendap: get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("opendap: get %s: unexpected status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, o.limit+1))
	if err != nil {
		return "", fmt.Errorf("opendap: read %s: %w", url, err)
	}
	if int64(len(b)) > o.limit {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, o.limit)
	}
	return string(b), nil
}

var _ ports.DatasetOpener = (*Opener)(nil)
