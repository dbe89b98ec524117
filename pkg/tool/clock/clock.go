// Package clock provides the time tool. It answers from the local wall
// clock with no external call.
package clock

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/tool"
)

type clock struct {
	now func() time.Time
}

// New creates a new time tool
func New() *clock {
	return &clock{now: time.Now}
}

func (x *clock) Name() string {
	return "time"
}

func (x *clock) Kind() tool.Kind {
	return tool.KindTime
}

func (x *clock) Run(ctx context.Context, query string) (string, error) {
	return "The current time is " + x.now().Format(time.RFC3339), nil
}

func (x *clock) Flags() []cli.Flag {
	return nil
}
