package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNothingToSettle      = errors.New("no unsettled payments")
	ErrNotDue               = errors.New("settlement not due")
	ErrSettlementInProgress = errors.New("settlement already in progress")
	ErrSettlementNotFound   = errors.New("settlement not found")
)

type Status string

const (
	// StatusProcessing means the payout may already have fired. A
	// processing settlement is never retried automatically; it waits for
	// manual reconciliation.
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Settlement consolidates one batch of unsettled ledger entries into a
// single payout. Destination fields are a snapshot taken at batch start;
// config changes after that never alter a settlement in flight. Rows are
// immutable once they reach a terminal status.
type Settlement struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID snowflake.ID `json:"company_id" gorm:"not null;index"`

	PeriodStart time.Time `json:"period_start" gorm:"not null"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null"`

	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:numeric;not null"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:numeric;not null"`
	NetAmount        decimal.Decimal `json:"net_amount" gorm:"type:numeric;not null"`
	TransactionCount int             `json:"transaction_count" gorm:"not null"`

	PayoutMethod      string `json:"payout_method" gorm:"type:varchar(20);not null"`
	PayoutDestination string `json:"payout_destination" gorm:"type:varchar(100);not null"`
	PayoutReference   string `json:"payout_reference" gorm:"type:varchar(100)"`

	Status        Status `json:"status" gorm:"type:varchar(20);not null;index"`
	FailureReason string `json:"failure_reason" gorm:"type:varchar(255)"`

	CreatedAt   time.Time  `json:"created_at" gorm:"not null;index"`
	ProcessedAt *time.Time `json:"processed_at"`
}

func (Settlement) TableName() string { return "isp_settlements" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, settlement *Settlement) error
	Update(ctx context.Context, db *gorm.DB, settlement *Settlement) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Settlement, error)
	FindLastCompleted(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*Settlement, error)
	FindProcessing(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*Settlement, error)
	ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Settlement, error)
	ListStuck(ctx context.Context, db *gorm.DB, olderThan time.Time) ([]Settlement, error)
}
