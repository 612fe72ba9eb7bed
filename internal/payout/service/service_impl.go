package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/clock"
	"github.com/netily/revenuepipe/internal/payout/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payout.config"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

type UpsertInput struct {
	CompanyID snowflake.ID

	Method string

	MpesaPhone string
	MpesaName  string

	BankCode          string
	BankName          string
	BankAccountNumber string
	BankAccountName   string
	BankBranch        string

	SettlementFrequency string
	MinimumPayout       decimal.Decimal
}

// Upsert creates or updates an ISP's payout destination. Changing the
// method or destination details revokes verification; it must be redone
// out-of-band before the ISP can be settled again.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (*domain.Config, error) {
	if input.Method != domain.MethodMobileMoney && input.Method != domain.MethodBankTransfer {
		return nil, domain.ErrUnsupportedMethod
	}
	if _, err := domain.FrequencyDays(input.SettlementFrequency); err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)

	existing, err := s.repo.FindByCompany(ctx, s.db, input.CompanyID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		cfg := &domain.Config{
			ID:                  s.genID.Generate(),
			CompanyID:           input.CompanyID,
			Method:              input.Method,
			MpesaPhone:          input.MpesaPhone,
			MpesaName:           input.MpesaName,
			BankCode:            input.BankCode,
			BankName:            input.BankName,
			BankAccountNumber:   input.BankAccountNumber,
			BankAccountName:     input.BankAccountName,
			BankBranch:          input.BankBranch,
			SettlementFrequency: input.SettlementFrequency,
			MinimumPayout:       input.MinimumPayout,
			PendingBalance:      decimal.Zero,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if _, err := cfg.Destination(); err != nil {
			return nil, err
		}
		if err := s.repo.Insert(ctx, s.db, cfg); err != nil {
			return nil, err
		}
		s.log.Info("payout config created", zap.String("company_id", input.CompanyID.String()))
		return cfg, nil
	}

	revoke := destinationChanged(existing, input)

	existing.Method = input.Method
	existing.MpesaPhone = input.MpesaPhone
	existing.MpesaName = input.MpesaName
	existing.BankCode = input.BankCode
	existing.BankName = input.BankName
	existing.BankAccountNumber = input.BankAccountNumber
	existing.BankAccountName = input.BankAccountName
	existing.BankBranch = input.BankBranch
	existing.SettlementFrequency = input.SettlementFrequency
	existing.MinimumPayout = input.MinimumPayout
	existing.UpdatedAt = now

	if _, err := existing.Destination(); err != nil {
		return nil, err
	}

	if revoke && existing.IsVerified {
		existing.IsVerified = false
		existing.VerifiedAt = nil
		s.log.Info("payout verification revoked on destination change",
			zap.String("company_id", input.CompanyID.String()))
	}

	if err := s.repo.Update(ctx, s.db, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func destinationChanged(existing *domain.Config, input UpsertInput) bool {
	return existing.Method != input.Method ||
		existing.MpesaPhone != input.MpesaPhone ||
		existing.BankCode != input.BankCode ||
		existing.BankAccountNumber != input.BankAccountNumber
}

// MarkVerified records a successful out-of-band destination verification.
func (s *Service) MarkVerified(ctx context.Context, companyID snowflake.ID) (*domain.Config, error) {
	cfg, err := s.repo.FindByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrConfigNotFound
	}

	now := s.clock.Now(ctx)
	cfg.IsVerified = true
	cfg.VerifiedAt = &now
	cfg.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, cfg); err != nil {
		return nil, err
	}
	s.log.Info("payout destination verified", zap.String("company_id", companyID.String()))
	return cfg, nil
}

func (s *Service) Get(ctx context.Context, companyID snowflake.ID) (*domain.Config, error) {
	cfg, err := s.repo.FindByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrConfigNotFound
	}
	return cfg, nil
}
