package observability

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewLogger() (*zap.Logger, error) {
	if os.Getenv("REVENUEPIPE_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
)
