package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/settlement/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, settlement *domain.Settlement) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, settlement *domain.Settlement) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(settlement).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	if db == nil {
		db = r.db
	}
	var settlement domain.Settlement
	if err := db.WithContext(ctx).First(&settlement, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) FindLastCompleted(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.Settlement, error) {
	return r.findOne(ctx, db, "company_id = ? AND status = ?", companyID, domain.StatusCompleted)
}

func (r *repository) FindProcessing(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.Settlement, error) {
	return r.findOne(ctx, db, "company_id = ? AND status = ?", companyID, domain.StatusProcessing)
}

func (r *repository) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Settlement, error) {
	if db == nil {
		db = r.db
	}
	var settlement domain.Settlement
	err := db.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").
		First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.Settlement, error) {
	if db == nil {
		db = r.db
	}
	var settlements []domain.Settlement
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&settlements).Error
	return settlements, err
}

func (r *repository) ListStuck(ctx context.Context, db *gorm.DB, olderThan time.Time) ([]domain.Settlement, error) {
	if db == nil {
		db = r.db
	}
	var settlements []domain.Settlement
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusProcessing, olderThan).
		Order("created_at ASC").
		Find(&settlements).Error
	return settlements, err
}
