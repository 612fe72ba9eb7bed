package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/clock"
	"github.com/netily/revenuepipe/internal/gateway"
	"github.com/netily/revenuepipe/internal/ledger/domain"
	payoutdomain "github.com/netily/revenuepipe/internal/payout/domain"
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
	Repo       domain.Repository
	PayoutRepo payoutdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	payoutRepo payoutdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		payoutRepo: p.PayoutRepo,
	}
}

type RecordInput struct {
	CompanyID   snowflake.ID
	PaymentType string
	Reference   string
	Gross       decimal.Decimal
	Rate        decimal.Decimal
}

// Record appends a commission split for one completed payment and credits
// the ISP's pending balance in the same transaction. A reference already
// recorded for the company returns the existing entry untouched, so
// webhook retries and reconcile races cannot double-credit.
func (s *Service) Record(ctx context.Context, input RecordInput) (*domain.Entry, error) {
	if !domain.ValidPaymentType(input.PaymentType) {
		return nil, domain.ErrInvalidPaymentType
	}
	if !input.Gross.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	split := gateway.ComputeCommission(input.Gross, input.Rate)

	var entry *domain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByReference(ctx, tx, input.CompanyID, input.Reference)
		if err != nil {
			return err
		}
		if existing != nil {
			entry = existing
			return nil
		}

		entry = &domain.Entry{
			ID:               s.genID.Generate(),
			CompanyID:        input.CompanyID,
			PaymentType:      input.PaymentType,
			PaymentReference: input.Reference,
			GrossAmount:      split.Gross,
			CommissionRate:   split.Rate,
			CommissionAmount: split.Commission,
			ISPAmount:        split.ISPAmount,
			CreatedAt:        s.clock.Now(ctx),
		}
		if err := s.repo.Insert(ctx, tx, entry); err != nil {
			return err
		}

		err = s.payoutRepo.AddToPendingBalance(ctx, tx, input.CompanyID, split.ISPAmount)
		if err != nil && !errors.Is(err, payoutdomain.ErrConfigNotFound) {
			return err
		}
		if errors.Is(err, payoutdomain.ErrConfigNotFound) {
			s.log.Warn("commission recorded for company without payout config",
				zap.String("company_id", input.CompanyID.String()),
				zap.String("reference", input.Reference))
		}
		return nil
	})
	if err != nil {
		// Lost the insert race to a concurrent recorder; the winner's row
		// is the entry for this reference.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.FindByReference(ctx, nil, input.CompanyID, input.Reference)
		}
		return nil, err
	}

	s.log.Info("commission recorded",
		zap.String("company_id", input.CompanyID.String()),
		zap.String("reference", input.Reference),
		zap.String("gross", split.Gross.String()),
		zap.String("commission", split.Commission.String()),
		zap.String("isp_amount", split.ISPAmount.String()))
	return entry, nil
}

func (s *Service) ListUnsettled(ctx context.Context, companyID snowflake.ID) ([]domain.Entry, error) {
	return s.repo.ListUnsettled(ctx, nil, companyID)
}

func (s *Service) UnsettledTotal(ctx context.Context, companyID snowflake.ID) (decimal.Decimal, error) {
	return s.repo.SumUnsettled(ctx, nil, companyID)
}
