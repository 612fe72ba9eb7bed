package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/payout/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, cfg *domain.Config) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, cfg *domain.Config) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(cfg).Error
}

func (r *repository) FindByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.Config, error) {
	if db == nil {
		db = r.db
	}
	var cfg domain.Config
	if err := db.WithContext(ctx).Where("company_id = ?", companyID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) LockByCompany(ctx context.Context, tx *gorm.DB, companyID snowflake.ID) (*domain.Config, error) {
	query := tx.WithContext(ctx)
	// sqlite (tests) has no row locks; its writes serialize anyway.
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var cfg domain.Config
	if err := query.Where("company_id = ?", companyID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) AddToPendingBalance(ctx context.Context, db *gorm.DB, companyID snowflake.ID, amount decimal.Decimal) error {
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE isp_payout_configs SET pending_balance = pending_balance + ? WHERE company_id = ?`,
		amount,
		companyID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConfigNotFound
	}
	return nil
}

func (r *repository) ListVerified(ctx context.Context, db *gorm.DB) ([]domain.Config, error) {
	if db == nil {
		db = r.db
	}
	var configs []domain.Config
	err := db.WithContext(ctx).Where("is_verified = ?", true).Find(&configs).Error
	return configs, err
}
