package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netily/revenuepipe/internal/config"
	"github.com/netily/revenuepipe/internal/gateway"
	ledgerservice "github.com/netily/revenuepipe/internal/ledger/service"
	payoutservice "github.com/netily/revenuepipe/internal/payout/service"
	sessionservice "github.com/netily/revenuepipe/internal/session/service"
	settlementservice "github.com/netily/revenuepipe/internal/settlement/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	Gateway       *gateway.Client
	SessionSvc    *sessionservice.Service
	LedgerSvc     *ledgerservice.Service
	PayoutSvc     *payoutservice.Service
	SettlementSvc *settlementservice.Service
}

type Server struct {
	cfg           config.Config
	log           *zap.Logger
	gw            *gateway.Client
	sessionSvc    *sessionservice.Service
	ledgerSvc     *ledgerservice.Service
	payoutSvc     *payoutservice.Service
	settlementSvc *settlementservice.Service
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		gw:            p.Gateway,
		sessionSvc:    p.SessionSvc,
		ledgerSvc:     p.LedgerSvc,
		payoutSvc:     p.PayoutSvc,
		settlementSvc: p.SettlementSvc,
	}
}

func NewRouter(s *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public: the captive portal calls these without credentials.
	hotspot := v1.Group("/hotspot")
	hotspot.POST("/purchase", s.StartPurchase)
	hotspot.GET("/purchase/:session_ref/status", s.PurchaseStatus)
	hotspot.GET("/plans", s.ListPlans)

	// Public but signed: the provider posts payment callbacks here.
	v1.POST("/webhooks/gateway/hotspot", s.HotspotWebhook)

	// Operator surface.
	payouts := v1.Group("/payout-configs")
	payouts.PUT("/companies/:company_id", s.UpsertPayoutConfig)
	payouts.GET("/companies/:company_id", s.GetPayoutConfig)
	payouts.POST("/companies/:company_id/verify", s.VerifyPayoutConfig)

	settlements := v1.Group("/settlements")
	settlements.POST("/run", s.RunSettlements)
	settlements.POST("/companies/:company_id/run", s.RunCompanySettlement)
	settlements.GET("/companies/:company_id", s.ListSettlements)
	settlements.GET("/companies/:company_id/balance", s.CompanyBalance)
	settlements.GET("/stuck", s.ListStuckSettlements)

	return router
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, router *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Provide(NewRouter),
	fx.Invoke(RunHTTP),
)
