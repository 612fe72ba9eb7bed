package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/netily/revenuepipe/internal/clock"
	"github.com/netily/revenuepipe/internal/config"
	"github.com/netily/revenuepipe/internal/gateway"
	ledgerdomain "github.com/netily/revenuepipe/internal/ledger/domain"
	ledgerservice "github.com/netily/revenuepipe/internal/ledger/service"
	"github.com/netily/revenuepipe/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PublicStatus is the closed vocabulary returned to polling clients.
// Raw session states and provider statuses never leak through it.
type PublicStatus string

const (
	PublicPending    PublicStatus = "pending"
	PublicSuccess    PublicStatus = "success"
	PublicFailed     PublicStatus = "failed"
	PublicExpired    PublicStatus = "expired"
	PublicActivating PublicStatus = "activating"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Gateway *gateway.Client
	Repo    domain.Repository
	Ledger  *ledgerservice.Service
	Sink    domain.ActivationSink
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	cfg    config.Config
	gw     *gateway.Client
	repo   domain.Repository
	ledger *ledgerservice.Service
	sink   domain.ActivationSink
}

func NewService(p Params) *Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("session"),
		genID:  p.GenID,
		clock:  p.Clock,
		cfg:    p.Cfg,
		gw:     p.Gateway,
		repo:   p.Repo,
		ledger: p.Ledger,
		sink:   p.Sink,
	}
}

type StartPurchaseInput struct {
	CompanyID  snowflake.ID
	PlanID     snowflake.ID
	Phone      string
	MacAddress string
	RouterRef  string
}

type StartPurchaseResult struct {
	SessionRef string       `json:"session_ref"`
	Status     PublicStatus `json:"status"`
	Amount     string       `json:"amount"`
	Message    string       `json:"message"`
}

// StartPurchase creates a pending session priced from the plan and fires
// the STK push. A gateway refusal marks the session failed and is
// reported in the result, not as an error; only validation and storage
// problems return errors.
func (s *Service) StartPurchase(ctx context.Context, input StartPurchaseInput) (*StartPurchaseResult, error) {
	if strings.TrimSpace(input.Phone) == "" {
		return nil, domain.ErrMissingPhone
	}

	plan, err := s.repo.FindPlan(ctx, nil, input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	if !plan.Active {
		return nil, domain.ErrPlanInactive
	}

	now := s.clock.Now(ctx)
	phone := s.gw.NormalizePhone(input.Phone)

	session := &domain.Session{
		ID:         uuid.New(),
		SessionRef: domain.NewSessionRef(now),
		CompanyID:  input.CompanyID,
		PlanID:     plan.ID,
		RouterRef:  input.RouterRef,
		Phone:      phone,
		MacAddress: input.MacAddress,
		Amount:     plan.Price,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, nil, session); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Hotspot access: %s", plan.Name)
	collection := s.gw.InitiateCollection(ctx, phone, plan.Price, session.SessionRef, description, s.cfg.GatewayCallbackURL)
	if !collection.Success {
		if _, err := s.repo.Transition(ctx, nil, session.ID, []domain.Status{domain.StatusPending}, map[string]any{
			"status":         domain.StatusFailed,
			"failure_reason": collection.Message,
		}); err != nil {
			return nil, err
		}
		s.log.Warn("collection initiation failed",
			zap.String("session_ref", session.SessionRef),
			zap.String("message", collection.Message))
		return &StartPurchaseResult{
			SessionRef: session.SessionRef,
			Status:     PublicFailed,
			Amount:     plan.Price.StringFixed(2),
			Message:    collection.Message,
		}, nil
	}

	if _, err := s.repo.Transition(ctx, nil, session.ID, []domain.Status{domain.StatusPending}, map[string]any{
		"checkout_id": collection.CheckoutID,
	}); err != nil {
		return nil, err
	}

	s.log.Info("purchase started",
		zap.String("session_ref", session.SessionRef),
		zap.String("checkout_id", collection.CheckoutID),
		zap.String("amount", plan.Price.StringFixed(2)))
	return &StartPurchaseResult{
		SessionRef: session.SessionRef,
		Status:     PublicPending,
		Amount:     plan.Price.StringFixed(2),
		Message:    "Payment request sent. Enter your PIN on the phone to complete.",
	}, nil
}

type ReconcileInput struct {
	SessionRef string
	CheckoutID string

	Status        gateway.PaymentStatus
	Receipt       string
	FailureReason string
}

// Reconcile applies one observed gateway outcome to a session. Poll
// responses and webhooks race here; the conditional status update makes
// each terminal transition happen at most once, and re-observing a
// terminal event on a settled session is a no-op.
func (s *Service) Reconcile(ctx context.Context, input ReconcileInput) (*domain.Session, error) {
	session, err := s.lookup(ctx, input)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if session.Status.Terminal() {
		return session, nil
	}

	switch input.Status {
	case gateway.StatusSuccess:
		return s.activate(ctx, session, input.Receipt)
	case gateway.StatusFailed:
		return s.fail(ctx, session, domain.StatusFailed, reasonOr(input.FailureReason, "payment failed"))
	case gateway.StatusCancelled:
		return s.fail(ctx, session, domain.StatusCancelled, reasonOr(input.FailureReason, "payment cancelled by customer"))
	case gateway.StatusExpired:
		return s.fail(ctx, session, domain.StatusFailed, reasonOr(input.FailureReason, "payment request expired"))
	default:
		// pending / queued: nothing to apply yet.
		return session, nil
	}
}

func (s *Service) lookup(ctx context.Context, input ReconcileInput) (*domain.Session, error) {
	if input.SessionRef != "" {
		return s.repo.FindByRef(ctx, nil, input.SessionRef)
	}
	if input.CheckoutID != "" {
		return s.repo.FindByCheckoutID(ctx, nil, input.CheckoutID)
	}
	return nil, domain.ErrSessionNotFound
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

func (s *Service) activate(ctx context.Context, session *domain.Session, receipt string) (*domain.Session, error) {
	now := s.clock.Now(ctx)

	if session.Status == domain.StatusPending {
		if _, err := s.repo.Transition(ctx, nil, session.ID, []domain.Status{domain.StatusPending}, map[string]any{
			"status":  domain.StatusPaid,
			"receipt": receipt,
		}); err != nil {
			return nil, err
		}
	}

	plan, err := s.repo.FindPlan(ctx, nil, session.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}

	credential := domain.NewAccessCredential()
	expiresAt := now.Add(plan.Duration())

	rows, err := s.repo.Transition(ctx, nil, session.ID, []domain.Status{domain.StatusPaid}, map[string]any{
		"status":            domain.StatusActive,
		"access_credential": credential,
		"activated_at":      now,
		"expires_at":        expiresAt,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race; the other observer owns the side effects.
		return s.repo.FindByRef(ctx, nil, session.SessionRef)
	}

	if _, err := s.ledger.Record(ctx, ledgerservice.RecordInput{
		CompanyID:   session.CompanyID,
		PaymentType: ledgerdomain.PaymentTypeHotspot,
		Reference:   session.SessionRef,
		Gross:       session.Amount,
		Rate:        s.gw.CommissionRate(),
	}); err != nil {
		// Session is active either way; the idempotent ledger key lets a
		// later reconcile of the same reference backfill the entry.
		s.log.Error("commission record failed after activation",
			zap.String("session_ref", session.SessionRef), zap.Error(err))
	}

	event := domain.ActivationEvent{
		SessionRef: session.SessionRef,
		CompanyID:  session.CompanyID,
		MacAddress: session.MacAddress,
		Credential: credential,
		ExpiresAt:  expiresAt,
	}
	if err := s.sink.SessionActivated(ctx, event); err != nil {
		s.log.Error("activation event delivery failed",
			zap.String("session_ref", session.SessionRef), zap.Error(err))
	}

	s.log.Info("session activated",
		zap.String("session_ref", session.SessionRef),
		zap.Time("expires_at", expiresAt))
	return s.repo.FindByRef(ctx, nil, session.SessionRef)
}

func (s *Service) fail(ctx context.Context, session *domain.Session, to domain.Status, reason string) (*domain.Session, error) {
	rows, err := s.repo.Transition(ctx, nil, session.ID,
		[]domain.Status{domain.StatusPending, domain.StatusPaid},
		map[string]any{
			"status":         to,
			"failure_reason": reason,
		})
	if err != nil {
		return nil, err
	}
	if rows > 0 {
		s.log.Info("session closed",
			zap.String("session_ref", session.SessionRef),
			zap.String("status", string(to)),
			zap.String("reason", reason))
	}
	return s.repo.FindByRef(ctx, nil, session.SessionRef)
}

type StatusResult struct {
	SessionRef string       `json:"session_ref"`
	Status     PublicStatus `json:"status"`
	Credential string       `json:"credential,omitempty"`
	ExpiresAt  string       `json:"expires_at,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// Status answers the customer's poll. Terminal states come straight from
// the database; a pending session triggers one gateway status query and
// reconciles the answer. A slow or unreachable gateway reads as still
// pending so the client keeps polling.
func (s *Service) Status(ctx context.Context, sessionRef string) (*StatusResult, error) {
	session, err := s.repo.FindByRef(ctx, nil, sessionRef)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	if session.Status == domain.StatusPending && session.CheckoutID != "" {
		observed := s.gw.GetStatus(ctx, session.CheckoutID)
		session, err = s.Reconcile(ctx, ReconcileInput{
			SessionRef:    sessionRef,
			Status:        observed.Status,
			Receipt:       observed.Receipt,
			FailureReason: observed.FailureReason,
		})
		if err != nil {
			return nil, err
		}
	}

	return s.toStatusResult(session), nil
}

func (s *Service) toStatusResult(session *domain.Session) *StatusResult {
	result := &StatusResult{SessionRef: session.SessionRef}
	switch session.Status {
	case domain.StatusActive:
		result.Status = PublicSuccess
		result.Credential = session.AccessCredential
		if session.ExpiresAt != nil {
			result.ExpiresAt = session.ExpiresAt.Format(time.RFC3339)
		}
	case domain.StatusPaid:
		result.Status = PublicActivating
	case domain.StatusExpired:
		result.Status = PublicExpired
	case domain.StatusFailed, domain.StatusCancelled:
		result.Status = PublicFailed
		result.Message = session.FailureReason
	default:
		result.Status = PublicPending
	}
	return result
}

// ExpireStale is the sweep job: pending/paid sessions past the
// confirmation window fail with a timeout reason, and active sessions
// past their expiry move to expired.
func (s *Service) ExpireStale(ctx context.Context) (failed int64, expired int64, err error) {
	now := s.clock.Now(ctx)
	cutoff := now.Add(-s.cfg.SessionTimeout)

	failed, err = s.repo.FailStale(ctx, nil, cutoff, "payment timeout")
	if err != nil {
		return 0, 0, err
	}
	expired, err = s.repo.ExpireActive(ctx, nil, now)
	if err != nil {
		return failed, 0, err
	}
	if failed > 0 || expired > 0 {
		s.log.Info("stale session sweep",
			zap.Int64("timed_out", failed),
			zap.Int64("expired", expired))
	}
	return failed, expired, nil
}

func (s *Service) ListPlans(ctx context.Context, companyID snowflake.ID) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx, nil, companyID)
}

func (s *Service) FindByRef(ctx context.Context, sessionRef string) (*domain.Session, error) {
	session, err := s.repo.FindByRef(ctx, nil, sessionRef)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
