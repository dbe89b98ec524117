package index

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Snapshot is the persisted form of an index. It records the embedding model
// and dimension so that a later load can refuse an incompatible artifact
// instead of silently mixing vector spaces.
func (x *Index) Snapshot() *model.IndexSnapshot {
	return &model.IndexSnapshot{
		Model:     x.embedModel,
		Dimension: x.dimension,
		CreatedAt: x.createdAt,
		Chunks:    x.chunks,
	}
}

func fromSnapshot(s *model.IndexSnapshot) *Index {
	return &Index{
		embedModel: s.Model,
		dimension:  s.Dimension,
		createdAt:  s.CreatedAt,
		chunks:     s.Chunks,
	}
}

type aborter interface {
	Abort() error
}

// Persist writes the index snapshot to storage under key. The write becomes
// visible only when it completes; a failed encode leaves the previous
// artifact untouched.
func Persist(ctx context.Context, st adapter.Storage, key string, x *Index) error {
	w, err := st.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open snapshot for write", goerr.V("key", key))
	}

	if err := json.NewEncoder(w).Encode(x.Snapshot()); err != nil {
		if a, ok := w.(aborter); ok {
			if aerr := a.Abort(); aerr != nil {
				logging.From(ctx).Warn("failed to abort snapshot write", "error", aerr)
			}
		}
		return goerr.Wrap(err, "failed to encode index snapshot", goerr.V("key", key))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit index snapshot", goerr.V("key", key))
	}

	logging.From(ctx).Info("persisted index snapshot",
		"key", key,
		"chunks", x.Size(),
		"model", x.Model(),
		"dimension", x.Dimension(),
	)
	return nil
}

// Load reads a snapshot from storage and rebuilds the index. A missing
// artifact is reported as adapter.ErrArtifactNotFound; a corrupt one as
// model.ErrIndexLoad.
func Load(ctx context.Context, st adapter.Storage, key string) (*Index, error) {
	r, err := st.Get(ctx, key)
	if err != nil {
		if errors.Is(err, adapter.ErrArtifactNotFound) {
			return nil, err
		}
		return nil, goerr.Wrap(model.ErrIndexLoad, "failed to open snapshot", goerr.V("key", key), goerr.V("cause", err.Error()))
	}
	defer func() {
		if err := r.Close(); err != nil {
			logging.From(ctx).Warn("failed to close snapshot reader", "error", err)
		}
	}()

	var snapshot model.IndexSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, goerr.Wrap(model.ErrIndexLoad, "failed to decode snapshot", goerr.V("key", key), goerr.V("cause", err.Error()))
	}

	for i, c := range snapshot.Chunks {
		if len(c.Vector) != snapshot.Dimension {
			return nil, goerr.Wrap(model.ErrIndexLoad, "snapshot chunk dimension differs from header",
				goerr.V("key", key), goerr.V("chunk", i),
				goerr.V("header", snapshot.Dimension), goerr.V("vector", len(c.Vector)))
		}
	}

	x := fromSnapshot(&snapshot)
	if snapshot.CreatedAt.IsZero() {
		x.createdAt = time.Now()
	}

	logging.From(ctx).Info("loaded index snapshot",
		"key", key,
		"chunks", x.Size(),
		"model", x.Model(),
		"dimension", x.Dimension(),
	)
	return x, nil
}
