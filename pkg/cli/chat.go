package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/tool/tavily"
)

// knowledgeQuery reports whether the utterance is a direct knowledge-base
// command and returns the query following the "/rag" or "/kb" prefix.
func knowledgeQuery(utterance string) (string, bool) {
	for _, prefix := range []string{"/rag", "/kb"} {
		if strings.HasPrefix(utterance, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(utterance, prefix)), true
		}
	}
	return "", false
}

func chatCommand() *cli.Command {
	var (
		cfg        config
		sessionKey string
	)
	searchTool := tavily.New()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session key for conversation memory",
			Value:       "local",
			Sources:     cli.EnvVars("KIOKU_SESSION"),
			Destination: &sessionKey,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, ragFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, searchTool.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with memory, tools, and retrieval",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			eng, err := cfg.newEngine(ctx, searchTool)
			if err != nil {
				return err
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize terminal")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Chat session started with %d indexed chunks. Type 'exit' to quit.\n", eng.indexer.Size())

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				utterance := strings.TrimSpace(line)
				if utterance == "" {
					continue
				}
				if utterance == "exit" {
					break
				}

				if query, ok := knowledgeQuery(utterance); ok {
					if query == "" {
						fmt.Fprintf(c.Root().Writer, "Please provide a query after the command. Example: /rag my question\n")
						continue
					}
					answer, err := eng.orchestrator.AnswerWithKnowledge(ctx, model.SessionKey(sessionKey), query)
					if err != nil {
						fmt.Fprintf(c.Root().Writer, "error: %v\n", err)
						continue
					}
					fmt.Fprintf(c.Root().Writer, "%s\n", answer)
					continue
				}

				reply, err := eng.orchestrator.HandleTurn(ctx, model.SessionKey(sessionKey), utterance)
				if err != nil {
					fmt.Fprintf(c.Root().Writer, "error: %v\n", err)
					continue
				}
				fmt.Fprintf(c.Root().Writer, "%s\n", reply)
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}
