package ports

import (
	"context"

	"github.com/reedan88/Isaias/internal/domain"
)

// Sink persists an assembled dataset. source names the target it came from.
type Sink interface {
	WriteDataset(ctx context.Context, source string, ds *domain.Dataset) (int, error)
	Name() string
}
