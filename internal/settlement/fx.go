package settlement

import (
	"github.com/netily/revenuepipe/internal/settlement/repository"
	"github.com/netily/revenuepipe/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
