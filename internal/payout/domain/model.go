package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/netily/revenuepipe/internal/gateway"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrConfigNotFound     = errors.New("payout configuration not found")
	ErrNotVerified        = errors.New("payout destination not verified")
	ErrUnsupportedMethod  = errors.New("unsupported payout method")
	ErrInvalidFrequency   = errors.New("invalid settlement frequency")
	ErrMissingDestination = errors.New("payout destination incomplete")
)

const (
	MethodMobileMoney  = "mobile_money"
	MethodBankTransfer = "bank_transfer"
)

const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// FrequencyDays maps a settlement frequency to the minimum number of days
// between completed settlements. Monthly uses a fixed 28-day cadence.
func FrequencyDays(frequency string) (int, error) {
	switch frequency {
	case FrequencyDaily:
		return 1, nil
	case FrequencyWeekly:
		return 7, nil
	case FrequencyBiweekly:
		return 14, nil
	case FrequencyMonthly:
		return 28, nil
	default:
		return 0, ErrInvalidFrequency
	}
}

// Config is the per-ISP settlement destination. PendingBalance is a cache
// of the sum of unsettled ledger entries for the company; the ledger and
// settlement services keep it reconciled to that invariant.
type Config struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID snowflake.ID `json:"company_id" gorm:"not null;uniqueIndex"`

	Method string `json:"method" gorm:"type:varchar(20);not null;default:'mobile_money'"`

	MpesaPhone string `json:"mpesa_phone" gorm:"type:varchar(20)"`
	MpesaName  string `json:"mpesa_name" gorm:"type:varchar(100)"`

	BankCode          string `json:"bank_code" gorm:"type:varchar(20)"`
	BankName          string `json:"bank_name" gorm:"type:varchar(100)"`
	BankAccountNumber string `json:"bank_account_number" gorm:"type:varchar(50)"`
	BankAccountName   string `json:"bank_account_name" gorm:"type:varchar(100)"`
	BankBranch        string `json:"bank_branch" gorm:"type:varchar(100)"`

	IsVerified bool       `json:"is_verified" gorm:"not null;default:false"`
	VerifiedAt *time.Time `json:"verified_at"`

	SettlementFrequency string          `json:"settlement_frequency" gorm:"type:varchar(20);not null;default:'weekly'"`
	MinimumPayout       decimal.Decimal `json:"minimum_payout" gorm:"type:numeric;not null;default:0"`
	PendingBalance      decimal.Decimal `json:"pending_balance" gorm:"type:numeric;not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Config) TableName() string { return "isp_payout_configs" }

// Destination builds the polymorphic payout target from the stored fields.
func (c *Config) Destination() (gateway.PayoutMethod, error) {
	switch c.Method {
	case MethodMobileMoney:
		if c.MpesaPhone == "" {
			return nil, ErrMissingDestination
		}
		return gateway.MobileMoneyDestination{Phone: c.MpesaPhone, Name: c.MpesaName}, nil
	case MethodBankTransfer:
		if c.BankCode == "" || c.BankAccountNumber == "" {
			return nil, ErrMissingDestination
		}
		return gateway.BankDestination{
			BankCode:      c.BankCode,
			AccountNumber: c.BankAccountNumber,
			AccountName:   c.BankAccountName,
		}, nil
	default:
		return nil, ErrUnsupportedMethod
	}
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *Config) error
	Update(ctx context.Context, db *gorm.DB, cfg *Config) error
	FindByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*Config, error)
	// LockByCompany loads the config row under a row lock so two
	// settlement runs for the same ISP cannot execute concurrently. Must
	// be called inside a transaction.
	LockByCompany(ctx context.Context, tx *gorm.DB, companyID snowflake.ID) (*Config, error)
	// AddToPendingBalance atomically adjusts the cached balance. Negative
	// amounts subtract (settlement completion).
	AddToPendingBalance(ctx context.Context, db *gorm.DB, companyID snowflake.ID, amount decimal.Decimal) error
	ListVerified(ctx context.Context, db *gorm.DB) ([]Config, error)
}
