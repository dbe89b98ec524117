package adapter

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// ErrArtifactNotFound indicates the requested artifact does not exist yet.
// On the first run the index snapshot is absent, which triggers a full
// ingestion instead of a load.
var ErrArtifactNotFound = goerr.New("artifact not found")

// Storage is the persistence boundary for the vector index snapshot. The
// snapshot is read and written as a single named artifact; a writer commits
// atomically on Close, so a crash mid-write never corrupts a previous
// snapshot.
type Storage interface {
	// Put returns a writer for the artifact. The artifact becomes visible
	// only when Close returns nil.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens the artifact for reading. Returns ErrArtifactNotFound if it
	// does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// storageClient implements Storage using Cloud Storage. Object writes in GCS
// are already atomic: the object appears only after the writer is closed.
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage backed Storage
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	writer := obj.NewWriter(ctx)
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrArtifactNotFound, "object does not exist", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}
