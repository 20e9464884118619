package pipeline

import "github.com/reedan88/Isaias/internal/domain"

// ParseCatalog keeps the netCDF entries that contain none of the exclusion
// substrings, in catalog order. A malformed exclusion list is rejected before
// any filtering.
func ParseCatalog(items []string, exclude domain.Exclusions) ([]string, error) {
	if err := exclude.Validate(); err != nil {
		return nil, err
	}
	return domain.Catalog(items).NetCDF(exclude), nil
}
