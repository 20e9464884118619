package ports

import "context"

// ArtifactStore keeps rendered plots and downloaded files. Put returns a URI
// naming the stored object.
type ArtifactStore interface {
	Put(ctx context.Context, localPath, objectName, contentType string) (string, error)
	Name() string
}
