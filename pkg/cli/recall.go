package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/service/memory"
)

// recallCommand replays a transcript file into a fresh session and shows
// which entries a query would recall. Transcript lines look like
// "user: hello" or "assistant: hi"; blank lines are skipped.
func recallCommand() *cli.Command {
	var (
		cfg        config
		transcript string
		query      string
		topK       int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "transcript",
			Aliases:     []string{"f"},
			Usage:       "Path to a transcript file to replay",
			Required:    true,
			Destination: &transcript,
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Similarity query against the replayed session",
			Required:    true,
			Destination: &query,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"k"},
			Usage:       "Number of entries to recall",
			Value:       5,
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "recall",
		Usage: "Inspect similarity recall over a replayed transcript",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			store, err := memory.New(cfg.newGateway(gemini))
			if err != nil {
				return goerr.Wrap(err, "failed to create session memory store")
			}

			file, err := os.Open(transcript)
			if err != nil {
				return goerr.Wrap(err, "failed to open transcript", goerr.V("path", transcript))
			}
			defer file.Close()

			const key = model.SessionKey("replay")
			scanner := bufio.NewScanner(file)
			lineNo := 0
			for scanner.Scan() {
				lineNo++
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				role, content, found := strings.Cut(line, ":")
				if !found {
					return goerr.New("transcript line must be 'role: content'",
						goerr.V("line", lineNo))
				}
				if err := store.Append(ctx, key, model.Role(strings.TrimSpace(role)), strings.TrimSpace(content)); err != nil {
					return goerr.Wrap(err, "failed to replay transcript entry", goerr.V("line", lineNo))
				}
			}
			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read transcript")
			}

			recalled, err := store.Recall(ctx, key, query, int(topK))
			if err != nil {
				return goerr.Wrap(err, "failed to recall")
			}

			if len(recalled) == 0 {
				fmt.Fprintf(c.Root().Writer, "Nothing recalled\n")
				return nil
			}
			for _, r := range recalled {
				fmt.Fprintf(c.Root().Writer, "%.4f\t%s\n", r.Similarity, r.Line())
			}
			return nil
		},
	}
}
