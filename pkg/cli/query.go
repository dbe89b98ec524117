package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/service/indexer"
	"github.com/m-mizutani/kioku/pkg/usecase/rag"
)

func queryCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, ragFlags(&cfg)...)

	return &cli.Command{
		Name:      "query",
		Usage:     "Show the indexed chunks nearest to a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query is required")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			gw := cfg.newGateway(gemini)
			idx := indexer.New(gw, storage,
				indexer.WithSnapshotKey(cfg.indexKey),
				indexer.WithChunkBudget(int(cfg.chunkTokens), int(cfg.chunkOverlap)),
			)
			if err := idx.Load(ctx, indexer.NewDirSource(cfg.docsDir)); err != nil {
				return goerr.Wrap(err, "failed to prepare document index")
			}

			engine := rag.New(gw, idx, gemini)
			chunks, err := engine.Query(ctx, query, int(cfg.ragTopK))
			if err != nil {
				return goerr.Wrap(err, "failed to query index")
			}

			if len(chunks) == 0 {
				fmt.Fprintf(c.Root().Writer, "No matching chunks found\n")
				return nil
			}

			for _, chunk := range chunks {
				fmt.Fprintf(c.Root().Writer, "%.4f\t%s#%d\t%s\n",
					chunk.Similarity, chunk.Chunk.SourceID, chunk.Chunk.ChunkIndex, chunk.Chunk.Text)
			}
			return nil
		},
	}
}
