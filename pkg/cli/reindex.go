package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/service/indexer"
)

func reindexCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, ragFlags(&cfg)...)

	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the document index from the docs directory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			idx := indexer.New(cfg.newGateway(gemini), storage,
				indexer.WithSnapshotKey(cfg.indexKey),
				indexer.WithChunkBudget(int(cfg.chunkTokens), int(cfg.chunkOverlap)),
			)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Indexing documents..."
			sp.Start()
			result, err := idx.Ingest(ctx, indexer.NewDirSource(cfg.docsDir))
			sp.Stop()

			if err != nil {
				if errors.Is(err, model.ErrIndexBusy) {
					return goerr.Wrap(err, "another reindex is already running")
				}
				return goerr.Wrap(err, "failed to reindex")
			}

			if result.Documents == 0 {
				fmt.Fprintf(c.Root().Writer, "No documents found in %s, index unchanged\n", cfg.docsDir)
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Reindexed %d documents into %d chunks in %s\n",
				result.Documents, result.ChunksIndexed, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
