package ports

import (
	"context"

	"github.com/reedan88/Isaias/internal/domain"
)

// DataRequester issues the asynchronous data request for one stream.
type DataRequester interface {
	RequestThredds(ctx context.Context, d domain.RequestDescriptor) (domain.JobHandle, error)
}

// StatusChecker performs a single status probe and reports the HTTP status code.
type StatusChecker interface {
	CheckStatus(ctx context.Context, statusURL string) (int, error)
}

// CatalogFetcher returns the urlPath of every dataset element in a catalog.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, catalogURL string) ([]string, error)
}

type VocabularyLookup interface {
	Vocabulary(ctx context.Context, ref domain.InstrumentRef) ([]domain.VocabEntry, error)
}

// DatasetOpener reads one remote file into memory.
type DatasetOpener interface {
	Open(ctx context.Context, url string) (*domain.Dataset, error)
}

// FileFetcher copies catalog entries to a local directory.
type FileFetcher interface {
	Download(ctx context.Context, paths []string, dir string) ([]string, error)
}
