package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/netily/revenuepipe/internal/session/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(session).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(session).Error
}

func (r *repository) FindByRef(ctx context.Context, db *gorm.DB, sessionRef string) (*domain.Session, error) {
	return r.findOne(ctx, db, "session_ref = ?", sessionRef)
}

func (r *repository) FindByCheckoutID(ctx context.Context, db *gorm.DB, checkoutID string) (*domain.Session, error) {
	return r.findOne(ctx, db, "checkout_id = ?", checkoutID)
}

func (r *repository) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Session, error) {
	if db == nil {
		db = r.db
	}
	var session domain.Session
	if err := db.WithContext(ctx).Where(query, arg).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) Transition(ctx context.Context, db *gorm.DB, id uuid.UUID, from []domain.Status, updates map[string]any) (int64, error) {
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) FailStale(ctx context.Context, db *gorm.DB, cutoff time.Time, reason string) (int64, error) {
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Model(&domain.Session{}).
		Where("status IN ? AND created_at < ?", []domain.Status{domain.StatusPending, domain.StatusPaid}, cutoff).
		Updates(map[string]any{
			"status":         domain.StatusFailed,
			"failure_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ExpireActive(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Model(&domain.Session{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", domain.StatusActive, now).
		Update("status", domain.StatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) FindPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) (*domain.Plan, error) {
	if db == nil {
		db = r.db
	}
	var plan domain.Plan
	if err := db.WithContext(ctx).First(&plan, "id = ?", planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) InsertPlan(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repository) ListPlans(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.Plan, error) {
	if db == nil {
		db = r.db
	}
	var plans []domain.Plan
	err := db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order("price ASC").
		Find(&plans).Error
	return plans, err
}
