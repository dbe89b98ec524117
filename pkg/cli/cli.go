package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "kioku",
		Usage: "Conversational agent with session memory and document retrieval",
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			reindexCommand(),
			queryCommand(),
			recallCommand(),
			versionCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// withLogger attaches a logger configured from the log-level flag to the
// context, writing to stderr so command output stays clean on stdout.
func (cfg *config) withLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}
