package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/service/embedding"
	"github.com/m-mizutani/kioku/pkg/service/indexer"
	"github.com/m-mizutani/kioku/pkg/service/memory"
	"github.com/m-mizutani/kioku/pkg/tool"
	"github.com/m-mizutani/kioku/pkg/tool/clock"
	"github.com/m-mizutani/kioku/pkg/tool/kb"
	"github.com/m-mizutani/kioku/pkg/usecase/converse"
	"github.com/m-mizutani/kioku/pkg/usecase/rag"
)

// config holds configuration values
type config struct {
	logLevel string

	// Adapters
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string

	// Storage
	bucket   string
	dataDir  string
	indexKey string

	// Retrieval
	docsDir         string
	ragTopK         int64
	maxContextBytes int64
	chunkTokens     int64
	chunkOverlap    int64

	// Session memory
	recallTopK    int64
	sessionCap    int64
	entryCap      int64
	embedCacheLen int64
	embedCacheTTL time.Duration

	triggerConfig string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "trigger-config",
			Usage:       "Path to YAML file overriding tool trigger keywords",
			Sources:     cli.EnvVars("KIOKU_TRIGGER_CONFIG"),
			Destination: &cfg.triggerConfig,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("KIOKU_GEMINI_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("KIOKU_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Gemini model for response generation",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("KIOKU_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini model for embeddings",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("KIOKU_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// storageFlags returns flags for the index snapshot location
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "GCS bucket for the index snapshot (local data dir is used when empty)",
			Sources:     cli.EnvVars("KIOKU_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Local directory for the index snapshot",
			Value:       "./data",
			Sources:     cli.EnvVars("KIOKU_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "index-key",
			Usage:       "Name of the index snapshot artifact",
			Value:       indexer.DefaultSnapshotKey,
			Sources:     cli.EnvVars("KIOKU_INDEX_KEY"),
			Destination: &cfg.indexKey,
		},
	}
}

// ragFlags returns flags for document ingestion and retrieval
func ragFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "docs-dir",
			Usage:       "Directory of source documents (*.txt, *.md)",
			Value:       "./docs",
			Sources:     cli.EnvVars("KIOKU_DOCS_DIR"),
			Destination: &cfg.docsDir,
		},
		&cli.IntFlag{
			Name:        "rag-top-k",
			Usage:       "Number of chunks grounding one answer",
			Value:       rag.DefaultTopK,
			Sources:     cli.EnvVars("KIOKU_RAG_TOP_K"),
			Destination: &cfg.ragTopK,
		},
		&cli.IntFlag{
			Name:        "max-context-bytes",
			Usage:       "Upper bound on the assembled grounding context",
			Value:       rag.DefaultMaxContextBytes,
			Sources:     cli.EnvVars("KIOKU_MAX_CONTEXT_BYTES"),
			Destination: &cfg.maxContextBytes,
		},
		&cli.IntFlag{
			Name:        "chunk-tokens",
			Usage:       "Token budget per document chunk",
			Value:       indexer.DefaultChunkTokens,
			Sources:     cli.EnvVars("KIOKU_CHUNK_TOKENS"),
			Destination: &cfg.chunkTokens,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Usage:       "Tokens repeated across adjacent chunks",
			Value:       indexer.DefaultOverlapTokens,
			Sources:     cli.EnvVars("KIOKU_CHUNK_OVERLAP"),
			Destination: &cfg.chunkOverlap,
		},
	}
}

// memoryFlags returns flags for the session memory store
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "recall-top-k",
			Usage:       "Number of prior turns recalled per request",
			Value:       converse.DefaultRecallTopK,
			Sources:     cli.EnvVars("KIOKU_RECALL_TOP_K"),
			Destination: &cfg.recallTopK,
		},
		&cli.IntFlag{
			Name:        "session-cap",
			Usage:       "Maximum number of live sessions before LRU eviction",
			Value:       memory.DefaultSessionCap,
			Sources:     cli.EnvVars("KIOKU_SESSION_CAP"),
			Destination: &cfg.sessionCap,
		},
		&cli.IntFlag{
			Name:        "entry-cap",
			Usage:       "Maximum entries kept per session (0 for unlimited)",
			Sources:     cli.EnvVars("KIOKU_ENTRY_CAP"),
			Destination: &cfg.entryCap,
		},
		&cli.IntFlag{
			Name:        "embed-cache-size",
			Usage:       "Embedding cache entries (0 disables the cache)",
			Value:       1024,
			Sources:     cli.EnvVars("KIOKU_EMBED_CACHE_SIZE"),
			Destination: &cfg.embedCacheLen,
		},
		&cli.DurationFlag{
			Name:        "embed-cache-ttl",
			Usage:       "Embedding cache entry lifetime",
			Value:       time.Hour,
			Sources:     cli.EnvVars("KIOKU_EMBED_CACHE_TTL"),
			Destination: &cfg.embedCacheTTL,
		},
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	)
}

// newStorage creates the snapshot storage, GCS when a bucket is set and the
// local data directory otherwise
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket != "" {
		return adapter.NewStorage(ctx, cfg.bucket)
	}
	return adapter.NewLocalStorage(cfg.dataDir)
}

func (cfg *config) newGateway(gemini adapter.Gemini) embedding.Gateway {
	gw := embedding.Gateway(embedding.New(gemini))
	if cfg.embedCacheLen > 0 {
		gw = embedding.WithCache(gw, int(cfg.embedCacheLen), cfg.embedCacheTTL)
	}
	return gw
}

func (cfg *config) newTriggers() (tool.Triggers, error) {
	if cfg.triggerConfig == "" {
		return tool.DefaultTriggers(), nil
	}
	return tool.LoadTriggers(cfg.triggerConfig)
}

// engine bundles the assembled components one command needs
type engine struct {
	indexer      *indexer.Indexer
	orchestrator *converse.Orchestrator
}

// newEngine wires the full pipeline: embedding gateway, document index
// (loaded from snapshot or freshly ingested), retrieval engine, tool router,
// session memory, and the orchestrator on top.
func (cfg *config) newEngine(ctx context.Context, searchTool tool.Tool) (*engine, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}

	gw := cfg.newGateway(gemini)

	idx := indexer.New(gw, storage,
		indexer.WithSnapshotKey(cfg.indexKey),
		indexer.WithChunkBudget(int(cfg.chunkTokens), int(cfg.chunkOverlap)),
	)
	if err := idx.Load(ctx, indexer.NewDirSource(cfg.docsDir)); err != nil {
		return nil, goerr.Wrap(err, "failed to prepare document index")
	}

	ragEngine := rag.New(gw, idx, gemini,
		rag.WithTopK(int(cfg.ragTopK)),
		rag.WithMaxContextBytes(int(cfg.maxContextBytes)),
	)

	store, err := memory.New(gw,
		memory.WithSessionCap(int(cfg.sessionCap)),
		memory.WithEntryCap(int(cfg.entryCap)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session memory store")
	}

	triggers, err := cfg.newTriggers()
	if err != nil {
		return nil, err
	}

	answerer := converse.NewKnowledgeAnswerer(ragEngine)
	tools := []tool.Tool{
		clock.New(),
		kb.New(answerer),
	}
	if searchTool != nil {
		tools = append(tools, searchTool)
	}
	router := tool.NewRouter(tool.New(tools...), tool.WithTriggers(triggers))

	orchestrator := converse.New(store, router, gemini,
		converse.WithRecallTopK(int(cfg.recallTopK)),
		converse.WithKnowledge(answerer),
	)

	return &engine{
		indexer:      idx,
		orchestrator: orchestrator,
	}, nil
}
