package payout

import (
	"github.com/netily/revenuepipe/internal/payout/repository"
	"github.com/netily/revenuepipe/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
