// Package artifact stores downloaded netCDF files and rendered plots.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/reedan88/Isaias/internal/ports"
)

const DefaultBucket = "isaias-artifacts"

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
}

// New builds the store named by backend: "none" (nil store), "local" or "minio".
func New(backend, root string, mc MinioConfig) (ports.ArtifactStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalStore(root), nil
	case "minio":
		return NewMinioStore(mc)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}

// LocalStore copies artifacts under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = "./data/artifacts"
	}
	return &LocalStore{root: root}
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Put(_ context.Context, localPath, objectName, _ string) (string, error) {
	object, err := cleanObject(objectName)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(object))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := copyFile(localPath, dst); err != nil {
		return "", err
	}
	return "artifact://local/" + object, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// MinioStore uploads artifacts to an S3-compatible bucket, creating it on
// first use.
type MinioStore struct {
	client *minio.Client
	bucket string

	once      sync.Once
	bucketErr error
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required when artifacts.backend=minio")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Name() string { return "minio" }

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.once.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketErr = err
			return
		}
		if !exists {
			s.bucketErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		}
	})
	return s.bucketErr
}

func (s *MinioStore) Put(ctx context.Context, localPath, objectName, contentType string) (string, error) {
	object, err := cleanObject(objectName)
	if err != nil {
		return "", err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, object, localPath, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", err
	}
	return fmt.Sprintf("artifact://s3/%s/%s", s.bucket, object), nil
}

// cleanObject rejects object names that would escape the store root.
func cleanObject(name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))[1:]
	if clean == "" || clean != strings.TrimPrefix(filepath.ToSlash(name), "/") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return clean, nil
}

var (
	_ ports.ArtifactStore = (*LocalStore)(nil)
	_ ports.ArtifactStore = (*MinioStore)(nil)
)
