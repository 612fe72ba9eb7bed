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
	"github.com/netily/revenuepipe/internal/seed"
	"github.com/netily/revenuepipe/internal/server"
	"github.com/netily/revenuepipe/internal/session"
	"github.com/netily/revenuepipe/internal/settlement"
	"github.com/netily/revenuepipe/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
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

		server.Module,

		fx.Invoke(SeedDemoData),
	)
	app.Run()
}

func SeedDemoData(cfg config.Config, conn *gorm.DB) error {
	if !cfg.SeedDemo {
		return nil
	}
	return seed.EnsureDemoCatalog(conn)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
