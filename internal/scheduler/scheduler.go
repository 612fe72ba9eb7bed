package scheduler

import (
	"context"
	"time"

	"github.com/netily/revenuepipe/internal/clock"
	"github.com/netily/revenuepipe/internal/config"
	sessionservice "github.com/netily/revenuepipe/internal/session/service"
	settlementservice "github.com/netily/revenuepipe/internal/settlement/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Cfg           config.Config
	SessionSvc    *sessionservice.Service
	SettlementSvc *settlementservice.Service
}

// Scheduler owns the background cadence: a short sweep that times out
// stale sessions and a longer scan that settles due companies. Both jobs
// are also callable one-shot for manual triggers.
type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	cfg           config.Config
	sessionSvc    *sessionservice.Service
	settlementSvc *settlementservice.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler"),
		clock:         p.Clock,
		cfg:           p.Cfg,
		sessionSvc:    p.SessionSvc,
		settlementSvc: p.SettlementSvc,
	}
}

// RunForever blocks until ctx is cancelled, ticking each job on its own
// interval. A failed tick is logged and the loop keeps going.
func (s *Scheduler) RunForever(ctx context.Context) {
	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()
	scan := time.NewTicker(s.cfg.SettlementScanInterval)
	defer scan.Stop()

	s.log.Info("scheduler started",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.Duration("settlement_scan_interval", s.cfg.SettlementScanInterval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-sweep.C:
			if err := s.SweepStaleSessionsJob(ctx); err != nil {
				s.log.Error("session sweep failed", zap.Error(err))
			}
		case <-scan.C:
			if err := s.SettleDueCompaniesJob(ctx); err != nil {
				s.log.Error("settlement scan failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) SweepStaleSessionsJob(ctx context.Context) error {
	_, _, err := s.sessionSvc.ExpireStale(ctx)
	return err
}

func (s *Scheduler) SettleDueCompaniesJob(ctx context.Context) error {
	results, err := s.settlementSvc.SettleAllDue(ctx)
	if err != nil {
		return err
	}
	for _, result := range results {
		if result.Error != "" {
			s.log.Warn("company settlement failed in scan",
				zap.String("company_id", result.CompanyID.String()),
				zap.String("error", result.Error))
		}
	}
	return nil
}

func Run(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(Run),
)
