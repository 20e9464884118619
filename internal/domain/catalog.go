package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotNetCDF is returned for a catalog entry that is not a .nc file.
var ErrNotNetCDF = errors.New("dataset is not netCDF")

const NetCDFExt = ".nc"

// Catalog is the ordered list of urlPath entries of a THREDDS catalog.
type Catalog []string

// IsNetCDF reports whether a catalog entry names a netCDF file.
func IsNetCDF(name string) bool {
	return strings.HasSuffix(name, NetCDFExt)
}

// RequireNetCDF returns ErrNotNetCDF wrapped with the first offending entry.
func RequireNetCDF(names []string) error {
	for _, n := range names {
		if !IsNetCDF(n) {
			return fmt.Errorf("%w: %s", ErrNotNetCDF, n)
		}
	}
	return nil
}

// NetCDF keeps the .nc entries not matched by ex, preserving order.
func (c Catalog) NetCDF(ex Exclusions) Catalog {
	out := make(Catalog, 0, len(c))
	for _, item := range c {
		if !IsNetCDF(item) || ex.Excludes(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// FileName is the last path element of a catalog entry.
func FileName(entry string) string {
	return path.Base(entry)
}
