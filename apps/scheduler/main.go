package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/clock"
	"github.com/netily/revenuepipe/internal/config"
	"github.com/netily/revenuepipe/internal/gateway"
	"github.com/netily/revenuepipe/internal/ledger"
	"github.com/netily/revenuepipe/internal/migration"
	"github.com/netily/revenuepipe/internal/observability"
	"github.com/netily/revenuepipe/internal/payout"
	"github.com/netily/revenuepipe/internal/scheduler"
	"github.com/netily/revenuepipe/internal/session"
	"github.com/netily/revenuepipe/internal/settlement"
	"github.com/netily/revenuepipe/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		gateway.Module,

		// Functional domains
		payout.Module,
		ledger.Module,
		session.Module,
		settlement.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
