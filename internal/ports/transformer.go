package ports

import "github.com/reedan88/Isaias/internal/domain"

// Transformer derives or rewrites variables in place.
type Transformer interface {
	Transform(ds *domain.Dataset) error
	Name() string
}
