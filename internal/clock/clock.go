package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}

func New() Clock { return SystemClock{} }

var Module = fx.Module("clock",
	fx.Provide(New),
)
