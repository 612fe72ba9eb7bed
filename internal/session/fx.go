package session

import (
	"github.com/netily/revenuepipe/internal/session/repository"
	"github.com/netily/revenuepipe/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewLogSink),
	fx.Provide(service.NewService),
)
