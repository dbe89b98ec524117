package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// localStorage implements Storage on the local filesystem. Put writes to a
// temporary file in the same directory and renames it over the target on
// Close, so the previous artifact stays intact until the new one is complete.
type localStorage struct {
	dir string
}

// NewLocalStorage creates a Storage rooted at dir, creating it if needed.
func NewLocalStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	dst := filepath.Join(s.dir, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact directory", goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create temporary artifact", goerr.V("key", key))
	}

	return &atomicWriter{file: tmp, dst: dst}, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(ErrArtifactNotFound, "artifact file does not exist", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to open artifact", goerr.V("key", key))
	}
	return f, nil
}

// atomicWriter commits on Close: fsync, close, then rename into place.
type atomicWriter struct {
	file   *os.File
	dst    string
	closed bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.file.Name())
		return goerr.Wrap(err, "failed to sync artifact")
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())
		return goerr.Wrap(err, "failed to close artifact")
	}
	if err := os.Rename(w.file.Name(), w.dst); err != nil {
		_ = os.Remove(w.file.Name())
		return goerr.Wrap(err, "failed to swap artifact", goerr.V("dst", w.dst))
	}
	return nil
}

// Abort discards the pending write, leaving any previous artifact untouched.
func (w *atomicWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil {
		return goerr.Wrap(err, "failed to remove temporary artifact")
	}
	return nil
}
