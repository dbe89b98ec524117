// Package memory implements the per-session semantic memory store: an
// append-only turn history per session, recalled by cosine similarity
// against a query embedding.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/service/embedding"
	"github.com/m-mizutani/kioku/pkg/utils/vectors"
)

const (
	// DefaultSessionCap bounds the number of live sessions; the least
	// recently used session is evicted beyond it. The original design grew
	// without bound for the process lifetime.
	DefaultSessionCap = 1024
)

// Store holds session turn histories and answers similarity-ranked recall.
// Safe for concurrent use from multiple turns, including turns on the same
// session key.
type Store struct {
	gw       embedding.Gateway
	sessions *lru.Cache[model.SessionKey, *session]
	entryCap int
}

type session struct {
	mu      sync.Mutex
	nextSeq uint64
	entries []entry
}

type entry struct {
	model.MemoryEntry
	seq uint64
}

type Option func(*config)

type config struct {
	sessionCap int
	entryCap   int
}

// WithSessionCap sets the maximum number of concurrently retained sessions.
func WithSessionCap(n int) Option {
	return func(c *config) {
		c.sessionCap = n
	}
}

// WithEntryCap caps entries per session; the oldest entries are dropped
// beyond it. Zero means unlimited.
func WithEntryCap(n int) Option {
	return func(c *config) {
		c.entryCap = n
	}
}

func New(gw embedding.Gateway, opts ...Option) (*Store, error) {
	cfg := &config{sessionCap: DefaultSessionCap}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sessionCap <= 0 {
		return nil, goerr.New("session cap must be positive", goerr.V("cap", cfg.sessionCap))
	}

	sessions, err := lru.New[model.SessionKey, *session](cfg.sessionCap)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session cache")
	}

	return &Store{
		gw:       gw,
		sessions: sessions,
		entryCap: cfg.entryCap,
	}, nil
}

// Append embeds content and appends it to the session's history, creating
// the session on first use. An embedding failure propagates and nothing is
// stored: an entry without a usable vector would corrupt ranking.
func (s *Store) Append(ctx context.Context, key model.SessionKey, role model.Role, content string) error {
	if err := role.Validate(); err != nil {
		return err
	}

	// Blocking network call; intentionally outside any lock.
	vec, err := s.gw.Embed(ctx, content)
	if err != nil {
		return goerr.Wrap(err, "failed to embed memory entry", goerr.V("session", key))
	}

	sess := s.getOrCreate(key)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.entries = append(sess.entries, entry{
		MemoryEntry: model.MemoryEntry{
			Role:      role,
			Content:   content,
			Vector:    vec,
			CreatedAt: time.Now(),
		},
		seq: sess.nextSeq,
	})
	sess.nextSeq++

	if s.entryCap > 0 && len(sess.entries) > s.entryCap {
		sess.entries = sess.entries[len(sess.entries)-s.entryCap:]
	}

	return nil
}

// Recall returns up to topK session entries ranked by cosine similarity to
// query, most similar first; equal scores break toward the most recent
// entry. An unknown session or an empty history yields an empty result, not
// an error.
func (s *Store) Recall(ctx context.Context, key model.SessionKey, query string, topK int) ([]model.Recalled, error) {
	if topK <= 0 {
		return nil, nil
	}

	sess, ok := s.sessions.Get(key)
	if !ok {
		return nil, nil
	}

	sess.mu.Lock()
	snapshot := make([]entry, len(sess.entries))
	copy(snapshot, sess.entries)
	sess.mu.Unlock()

	if len(snapshot) == 0 {
		return nil, nil
	}

	// Query embedding is computed once per recall.
	qvec, err := s.gw.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed recall query", goerr.V("session", key))
	}

	scored := make([]model.Recalled, 0, len(snapshot))
	seqs := make([]uint64, 0, len(snapshot))
	for _, e := range snapshot {
		sim, err := vectors.Cosine(e.Vector, qvec)
		if err != nil {
			return nil, goerr.Wrap(err, "stored vector incompatible with query", goerr.V("session", key))
		}
		scored = append(scored, model.Recalled{
			Role:       e.Role,
			Content:    e.Content,
			Similarity: sim,
		})
		seqs = append(seqs, e.seq)
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return seqs[i] > seqs[j] // most recent wins on ties
	})

	if topK > len(order) {
		topK = len(order)
	}
	result := make([]model.Recalled, 0, topK)
	for _, i := range order[:topK] {
		result = append(result, scored[i])
	}
	return result, nil
}

// Size returns the number of entries stored for the session key.
func (s *Store) Size(key model.SessionKey) int {
	sess, ok := s.sessions.Peek(key)
	if !ok {
		return 0
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.entries)
}

// getOrCreate resolves the session for key with first-writer-wins creation:
// when two turns race on a new key, both end up appending to the same
// session.
func (s *Store) getOrCreate(key model.SessionKey) *session {
	if sess, ok := s.sessions.Get(key); ok {
		return sess
	}
	fresh := &session{}
	if prev, ok, _ := s.sessions.PeekOrAdd(key, fresh); ok {
		return prev
	}
	return fresh
}
