package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/clock"
	"github.com/netily/revenuepipe/internal/gateway"
	ledgerdomain "github.com/netily/revenuepipe/internal/ledger/domain"
	payoutdomain "github.com/netily/revenuepipe/internal/payout/domain"
	"github.com/netily/revenuepipe/internal/settlement/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Gateway    *gateway.Client
	Repo       domain.Repository
	LedgerRepo ledgerdomain.Repository
	PayoutRepo payoutdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	gw         *gateway.Client
	repo       domain.Repository
	ledgerRepo ledgerdomain.Repository
	payoutRepo payoutdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("settlement"),
		genID:      p.GenID,
		clock:      p.Clock,
		gw:         p.Gateway,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		payoutRepo: p.PayoutRepo,
	}
}

// DueCompanies returns the payout configs eligible for settlement now:
// verified, balance at or above the minimum, and the configured frequency
// elapsed since the last completed settlement. A company with no prior
// completed settlement is due as soon as the balance qualifies.
func (s *Service) DueCompanies(ctx context.Context) ([]payoutdomain.Config, error) {
	configs, err := s.payoutRepo.ListVerified(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)

	var due []payoutdomain.Config
	for _, cfg := range configs {
		if cfg.PendingBalance.LessThan(cfg.MinimumPayout) {
			continue
		}
		ok, err := s.frequencyElapsed(ctx, &cfg, now)
		if err != nil {
			return nil, err
		}
		if ok {
			due = append(due, cfg)
		}
	}
	return due, nil
}

func (s *Service) frequencyElapsed(ctx context.Context, cfg *payoutdomain.Config, now time.Time) (bool, error) {
	days, err := payoutdomain.FrequencyDays(cfg.SettlementFrequency)
	if err != nil {
		return false, err
	}
	last, err := s.repo.FindLastCompleted(ctx, nil, cfg.CompanyID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return !now.Before(last.CreatedAt.Add(time.Duration(days) * 24 * time.Hour)), nil
}

type batch struct {
	settlement *domain.Settlement
	entryIDs   []snowflake.ID
	target     gateway.PayoutMethod
}

// SettleCompany drains the company's unsettled ledger entries into one
// payout. The payout-config row lock serializes concurrent runs for the
// same company, and an unresolved processing settlement blocks new runs
// until an operator reconciles it. force bypasses the minimum-balance and
// frequency checks, not verification.
func (s *Service) SettleCompany(ctx context.Context, companyID snowflake.ID, force bool) (*domain.Settlement, error) {
	prepared, err := s.prepare(ctx, companyID, force)
	if err != nil {
		return nil, err
	}

	settlement := prepared.settlement
	payout := prepared.target.Payout(ctx, s.gw, settlement.NetAmount,
		fmt.Sprintf("STL-%s", settlement.ID),
		"Hotspot revenue settlement")

	now := s.clock.Now(ctx)
	if !payout.Success {
		settlement.Status = domain.StatusFailed
		settlement.FailureReason = payout.Message
		settlement.ProcessedAt = &now
		if err := s.repo.Update(ctx, nil, settlement); err != nil {
			return nil, err
		}
		s.log.Warn("settlement payout failed",
			zap.String("company_id", companyID.String()),
			zap.String("settlement_id", settlement.ID.String()),
			zap.String("net_amount", settlement.NetAmount.String()),
			zap.String("reason", payout.Message))
		return settlement, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.payoutRepo.LockByCompany(ctx, tx, companyID); err != nil {
			return err
		}
		rows, err := s.ledgerRepo.MarkSettled(ctx, tx, prepared.entryIDs, settlement.ID)
		if err != nil {
			return err
		}
		if rows != int64(len(prepared.entryIDs)) {
			return fmt.Errorf("settlement %s: settled %d of %d entries", settlement.ID, rows, len(prepared.entryIDs))
		}
		// Subtract the settled sum rather than zeroing: entries recorded
		// after the batch was read keep their balance contribution.
		if err := s.payoutRepo.AddToPendingBalance(ctx, tx, companyID, settlement.NetAmount.Neg()); err != nil {
			return err
		}
		settlement.Status = domain.StatusCompleted
		settlement.PayoutReference = payout.TransactionID
		settlement.ProcessedAt = &now
		return s.repo.Update(ctx, tx, settlement)
	})
	if err != nil {
		// The payout fired but the books did not close. The settlement
		// stays processing and is surfaced by ListStuck.
		s.log.Error("settlement completion failed after payout",
			zap.String("company_id", companyID.String()),
			zap.String("settlement_id", settlement.ID.String()),
			zap.Error(err))
		return settlement, err
	}

	s.log.Info("settlement completed",
		zap.String("company_id", companyID.String()),
		zap.String("settlement_id", settlement.ID.String()),
		zap.String("net_amount", settlement.NetAmount.String()),
		zap.Int("transaction_count", settlement.TransactionCount))
	return settlement, nil
}

// prepare runs the batch-start transaction: lock the config, select the
// unsettled entries, snapshot totals and destination, and persist the
// processing settlement row.
func (s *Service) prepare(ctx context.Context, companyID snowflake.ID, force bool) (*batch, error) {
	var prepared *batch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.payoutRepo.LockByCompany(ctx, tx, companyID)
		if err != nil {
			return err
		}
		if cfg == nil {
			return payoutdomain.ErrConfigNotFound
		}
		if !cfg.IsVerified {
			return payoutdomain.ErrNotVerified
		}

		if existing, err := s.repo.FindProcessing(ctx, tx, companyID); err != nil {
			return err
		} else if existing != nil {
			return domain.ErrSettlementInProgress
		}

		if !force {
			if cfg.PendingBalance.LessThan(cfg.MinimumPayout) {
				return domain.ErrNotDue
			}
			due, err := s.frequencyElapsed(ctx, cfg, s.clock.Now(ctx))
			if err != nil {
				return err
			}
			if !due {
				return domain.ErrNotDue
			}
		}

		entries, err := s.ledgerRepo.ListUnsettled(ctx, tx, companyID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return domain.ErrNothingToSettle
		}

		target, err := cfg.Destination()
		if err != nil {
			return err
		}

		gross, commission, net := decimal.Zero, decimal.Zero, decimal.Zero
		periodStart, periodEnd := entries[0].CreatedAt, entries[0].CreatedAt
		entryIDs := make([]snowflake.ID, 0, len(entries))
		for _, entry := range entries {
			gross = gross.Add(entry.GrossAmount)
			commission = commission.Add(entry.CommissionAmount)
			net = net.Add(entry.ISPAmount)
			if entry.CreatedAt.Before(periodStart) {
				periodStart = entry.CreatedAt
			}
			if entry.CreatedAt.After(periodEnd) {
				periodEnd = entry.CreatedAt
			}
			entryIDs = append(entryIDs, entry.ID)
		}

		settlement := &domain.Settlement{
			ID:                s.genID.Generate(),
			CompanyID:         companyID,
			PeriodStart:       periodStart,
			PeriodEnd:         periodEnd,
			GrossAmount:       gross,
			CommissionAmount:  commission,
			NetAmount:         net,
			TransactionCount:  len(entries),
			PayoutMethod:      target.Method(),
			PayoutDestination: target.Destination(),
			Status:            domain.StatusProcessing,
			CreatedAt:         s.clock.Now(ctx),
		}
		if err := s.repo.Insert(ctx, tx, settlement); err != nil {
			return err
		}
		prepared = &batch{settlement: settlement, entryIDs: entryIDs, target: target}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prepared, nil
}

// CompanyResult is one outcome from a batch run.
type CompanyResult struct {
	CompanyID  snowflake.ID       `json:"company_id"`
	Settlement *domain.Settlement `json:"settlement,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// SettleAllDue settles every due company. One company's failure never
// stops the rest of the batch.
func (s *Service) SettleAllDue(ctx context.Context) ([]CompanyResult, error) {
	due, err := s.DueCompanies(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]CompanyResult, 0, len(due))
	for _, cfg := range due {
		settlement, err := s.SettleCompany(ctx, cfg.CompanyID, false)
		result := CompanyResult{CompanyID: cfg.CompanyID, Settlement: settlement}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// ListStuck returns processing settlements older than the given age.
// These need manual reconciliation against the provider: the payout may
// or may not have landed.
func (s *Service) ListStuck(ctx context.Context, olderThan time.Duration) ([]domain.Settlement, error) {
	cutoff := s.clock.Now(ctx).Add(-olderThan)
	return s.repo.ListStuck(ctx, nil, cutoff)
}

func (s *Service) ListByCompany(ctx context.Context, companyID snowflake.ID) ([]domain.Settlement, error) {
	return s.repo.ListByCompany(ctx, nil, companyID)
}
