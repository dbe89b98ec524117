package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/tool/tavily"
)

func askCommand() *cli.Command {
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
		Name:      "ask",
		Usage:     "Run a single conversation turn",
		ArgsUsage: "<utterance>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			utterance := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if utterance == "" {
				return goerr.New("utterance is required")
			}

			eng, err := cfg.newEngine(ctx, searchTool)
			if err != nil {
				return err
			}

			reply, err := eng.orchestrator.HandleTurn(ctx, model.SessionKey(sessionKey), utterance)
			if err != nil {
				return goerr.Wrap(err, "failed to handle turn")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", reply)
			return nil
		},
	}
}
