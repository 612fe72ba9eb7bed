package domain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("purchase session not found")
	ErrPlanNotFound    = errors.New("hotspot plan not found")
	ErrPlanInactive    = errors.New("hotspot plan is not active")
	ErrMissingPhone    = errors.New("payer phone number is required")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusActive    Status = "active"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
// paid is not terminal: it still awaits activation.
func (s Status) Terminal() bool {
	switch s {
	case StatusActive, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Session is one customer's attempt to buy hotspot access. The row is
// never deleted; it is the audit trail for the payment.
type Session struct {
	ID         uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	SessionRef string       `json:"session_ref" gorm:"type:varchar(64);not null;uniqueIndex"`
	CompanyID  snowflake.ID `json:"company_id" gorm:"not null;index"`
	PlanID     snowflake.ID `json:"plan_id" gorm:"not null"`
	RouterRef  string       `json:"router_ref" gorm:"type:varchar(64)"`

	Phone      string          `json:"phone" gorm:"type:varchar(20);not null"`
	MacAddress string          `json:"mac_address" gorm:"type:varchar(32);not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric;not null"`

	CheckoutID       string `json:"checkout_id" gorm:"type:varchar(100);uniqueIndex:idx_sessions_checkout,where:checkout_id <> ''"`
	Receipt          string `json:"receipt" gorm:"type:varchar(100)"`
	AccessCredential string `json:"access_credential" gorm:"type:varchar(32)"`

	Status        Status `json:"status" gorm:"type:varchar(20);not null;index"`
	FailureReason string `json:"failure_reason" gorm:"type:varchar(255)"`

	ActivatedAt *time.Time `json:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Session) TableName() string { return "hotspot_sessions" }

// Plan is the catalog entry a session is priced from.
type Plan struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID       snowflake.ID    `json:"company_id" gorm:"not null;index"`
	Name            string          `json:"name" gorm:"type:varchar(100);not null"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric;not null"`
	DurationMinutes int             `json:"duration_minutes" gorm:"not null"`
	Active          bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Plan) TableName() string { return "hotspot_plans" }

func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// NewSessionRef builds the human-shareable session reference, e.g.
// HS_1717243200_a3f9c2d1.
func NewSessionRef(now time.Time) string {
	return fmt.Sprintf("HS_%d_%s", now.Unix(), randomHex(4))
}

// NewAccessCredential builds the hotspot login code, e.g. WIFI-3F9A2C.
func NewAccessCredential() string {
	return "WIFI-" + strings.ToUpper(randomHex(3))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// ActivationEvent is handed to the provisioning collaborator (RADIUS)
// when a session goes active.
type ActivationEvent struct {
	SessionRef string
	CompanyID  snowflake.ID
	MacAddress string
	Credential string
	ExpiresAt  time.Time
}

type ActivationSink interface {
	SessionActivated(ctx context.Context, event ActivationEvent) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	Update(ctx context.Context, db *gorm.DB, session *Session) error
	FindByRef(ctx context.Context, db *gorm.DB, sessionRef string) (*Session, error)
	FindByCheckoutID(ctx context.Context, db *gorm.DB, checkoutID string) (*Session, error)
	// Transition applies updates only while the session status is still in
	// from, returning the number of rows changed. Zero means another
	// observer already moved the session on.
	Transition(ctx context.Context, db *gorm.DB, id uuid.UUID, from []Status, updates map[string]any) (int64, error)
	FailStale(ctx context.Context, db *gorm.DB, cutoff time.Time, reason string) (int64, error)
	ExpireActive(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)

	FindPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) (*Plan, error)
	InsertPlan(ctx context.Context, db *gorm.DB, plan *Plan) error
	ListPlans(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Plan, error)
}
