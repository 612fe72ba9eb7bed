package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	payoutdomain "github.com/netily/revenuepipe/internal/payout/domain"
	sessiondomain "github.com/netily/revenuepipe/internal/session/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const demoCompanyID snowflake.ID = 1

// EnsureDemoCatalog seeds a demo company with a plan catalog and an
// unverified payout config. Used by local development and smoke tests;
// idempotent across restarts.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePlans(ctx, tx, node); err != nil {
			return err
		}
		return ensurePayoutConfig(ctx, tx, node)
	})
}

func ensurePlans(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&sessiondomain.Plan{}).
		Where("company_id = ?", demoCompanyID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	plans := []sessiondomain.Plan{
		{ID: node.Generate(), CompanyID: demoCompanyID, Name: "1 Hour", Price: decimal.NewFromInt(20), DurationMinutes: 60, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), CompanyID: demoCompanyID, Name: "6 Hours", Price: decimal.NewFromInt(50), DurationMinutes: 360, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), CompanyID: demoCompanyID, Name: "24 Hours", Price: decimal.NewFromInt(100), DurationMinutes: 1440, Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), CompanyID: demoCompanyID, Name: "1 Week", Price: decimal.NewFromInt(500), DurationMinutes: 10080, Active: true, CreatedAt: now, UpdatedAt: now},
	}
	return tx.WithContext(ctx).Create(&plans).Error
}

func ensurePayoutConfig(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&payoutdomain.Config{}).
		Where("company_id = ?", demoCompanyID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	return tx.WithContext(ctx).Create(&payoutdomain.Config{
		ID:                  node.Generate(),
		CompanyID:           demoCompanyID,
		Method:              payoutdomain.MethodMobileMoney,
		MpesaPhone:          "254700000000",
		MpesaName:           "Demo ISP",
		SettlementFrequency: payoutdomain.FrequencyWeekly,
		MinimumPayout:       decimal.NewFromInt(1000),
		PendingBalance:      decimal.Zero,
		CreatedAt:           now,
		UpdatedAt:           now,
	}).Error
}
