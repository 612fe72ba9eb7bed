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
	ErrInvalidPaymentType = errors.New("invalid payment type")
	ErrInvalidAmount      = errors.New("gross amount must be positive")
)

const (
	PaymentTypeHotspot  = "hotspot"
	PaymentTypeRecharge = "recharge"
	PaymentTypeInvoice  = "invoice"
)

func ValidPaymentType(t string) bool {
	switch t {
	case PaymentTypeHotspot, PaymentTypeRecharge, PaymentTypeInvoice:
		return true
	}
	return false
}

// Entry is one commission split for one completed customer payment.
// Append-only: rows are never deleted, and once Settled is true the row is
// immutable with a non-null SettlementID. The (company_id,
// payment_reference) unique index is what makes recording idempotent under
// at-least-once delivery.
type Entry struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID    snowflake.ID  `json:"company_id" gorm:"not null;index;uniqueIndex:idx_ledger_company_reference"`
	SettlementID *snowflake.ID `json:"settlement_id" gorm:"index"`

	PaymentType      string `json:"payment_type" gorm:"type:varchar(20);not null"`
	PaymentReference string `json:"payment_reference" gorm:"type:varchar(100);not null;uniqueIndex:idx_ledger_company_reference"`

	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:numeric;not null"`
	CommissionRate   decimal.Decimal `json:"commission_rate" gorm:"type:numeric;not null"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:numeric;not null"`
	ISPAmount        decimal.Decimal `json:"isp_amount" gorm:"type:numeric;not null"`

	Settled bool `json:"settled" gorm:"not null;default:false;index"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (Entry) TableName() string { return "commission_ledger_entries" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	FindByReference(ctx context.Context, db *gorm.DB, companyID snowflake.ID, reference string) (*Entry, error)
	ListUnsettled(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Entry, error)
	SumUnsettled(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (decimal.Decimal, error)
	// MarkSettled flips exactly the given entries to settled with a
	// back-reference to the settlement. Returns the number of rows
	// updated so callers can detect a partial match.
	MarkSettled(ctx context.Context, db *gorm.DB, entryIDs []snowflake.ID, settlementID snowflake.ID) (int64, error)
}
