package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByReference(ctx context.Context, db *gorm.DB, companyID snowflake.ID, reference string) (*domain.Entry, error) {
	if db == nil {
		db = r.db
	}
	var entry domain.Entry
	err := db.WithContext(ctx).
		Where("company_id = ? AND payment_reference = ?", companyID, reference).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListUnsettled(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.Entry, error) {
	if db == nil {
		db = r.db
	}
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Where("company_id = ? AND settled = ?", companyID, false).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) SumUnsettled(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (decimal.Decimal, error) {
	if db == nil {
		db = r.db
	}
	var total decimal.NullDecimal
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(isp_amount) FROM commission_ledger_entries
		 WHERE company_id = ? AND settled = ?`,
		companyID,
		false,
	).Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) MarkSettled(ctx context.Context, db *gorm.DB, entryIDs []snowflake.ID, settlementID snowflake.ID) (int64, error) {
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Model(&domain.Entry{}).
		Where("id IN ? AND settled = ?", entryIDs, false).
		Updates(map[string]any{
			"settled":       true,
			"settlement_id": settlementID,
		})
	return result.RowsAffected, result.Error
}
