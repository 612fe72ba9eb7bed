package ledger

import (
	"github.com/netily/revenuepipe/internal/ledger/repository"
	"github.com/netily/revenuepipe/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
