package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/netily/revenuepipe/internal/gateway"
	ledgerdomain "github.com/netily/revenuepipe/internal/ledger/domain"
	ledgerrepo "github.com/netily/revenuepipe/internal/ledger/repository"
	payoutdomain "github.com/netily/revenuepipe/internal/payout/domain"
	payoutrepo "github.com/netily/revenuepipe/internal/payout/repository"
	"github.com/netily/revenuepipe/internal/settlement/domain"
	settlementrepo "github.com/netily/revenuepipe/internal/settlement/repository"
	"github.com/netily/revenuepipe/internal/settlement/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now(ctx context.Context) time.Time { return c.t }

type fixture struct {
	svc  *service.Service
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time
}

func setup(t *testing.T, gatewayURL string) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Entry{}, &payoutdomain.Config{}, &domain.Settlement{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	log := zap.NewNop()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:     gatewayURL,
		APIUsername: "user",
		APIPassword: "pass",
		Timeout:     2 * time.Second,
	}, log)

	svc := service.NewService(service.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fixedClock{t: now},
		Gateway:    gw,
		Repo:       settlementrepo.NewRepository(db),
		LedgerRepo: ledgerrepo.NewRepository(db),
		PayoutRepo: payoutrepo.NewRepository(db),
	})
	return &fixture{svc: svc, db: db, node: node, now: now}
}

func payoutServer(t *testing.T, succeed bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !succeed {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true, "transaction_id": "TXN9001",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fixture) seedConfig(t *testing.T, verified bool, minimum int64) snowflake.ID {
	t.Helper()
	companyID := f.node.Generate()
	cfg := &payoutdomain.Config{
		ID:                  f.node.Generate(),
		CompanyID:           companyID,
		Method:              payoutdomain.MethodMobileMoney,
		MpesaPhone:          "254712345678",
		MpesaName:           "Acme Networks",
		IsVerified:          verified,
		SettlementFrequency: payoutdomain.FrequencyDaily,
		MinimumPayout:       decimal.NewFromInt(minimum),
		PendingBalance:      decimal.Zero,
		CreatedAt:           f.now,
		UpdatedAt:           f.now,
	}
	if verified {
		cfg.VerifiedAt = &f.now
	}
	require.NoError(t, f.db.Create(cfg).Error)
	return companyID
}

// seedEntry writes an unsettled ledger row and bumps the cached balance
// the way the ledger service does.
func (f *fixture) seedEntry(t *testing.T, companyID snowflake.ID, isp int64, reference string, at time.Time) {
	t.Helper()
	ispAmount := decimal.NewFromInt(isp)
	gross := ispAmount.Div(decimal.RequireFromString("0.95")).Round(2)
	require.NoError(t, f.db.Create(&ledgerdomain.Entry{
		ID:               f.node.Generate(),
		CompanyID:        companyID,
		PaymentType:      ledgerdomain.PaymentTypeHotspot,
		PaymentReference: reference,
		GrossAmount:      gross,
		CommissionRate:   decimal.RequireFromString("0.05"),
		CommissionAmount: gross.Sub(ispAmount),
		ISPAmount:        ispAmount,
		CreatedAt:        at,
	}).Error)
	require.NoError(t, f.db.Exec(
		`UPDATE isp_payout_configs SET pending_balance = pending_balance + ? WHERE company_id = ?`,
		ispAmount, companyID,
	).Error)
}

func (f *fixture) balance(t *testing.T, companyID snowflake.ID) decimal.Decimal {
	t.Helper()
	var cfg payoutdomain.Config
	require.NoError(t, f.db.Where("company_id = ?", companyID).First(&cfg).Error)
	return cfg.PendingBalance
}

func TestDueCompaniesThreshold(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 5000)
	f.seedEntry(t, companyID, 4950, "R1", f.now.Add(-time.Hour))

	due, err := f.svc.DueCompanies(context.Background())
	require.NoError(t, err)
	require.Empty(t, due)

	f.seedEntry(t, companyID, 150, "R2", f.now.Add(-30*time.Minute))

	due, err = f.svc.DueCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, companyID, due[0].CompanyID)
}

func TestDueCompaniesSkipsUnverified(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, false, 100)
	f.seedEntry(t, companyID, 1000, "R1", f.now)

	due, err := f.svc.DueCompanies(context.Background())
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestDueCompaniesFrequencyGate(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)
	f.seedEntry(t, companyID, 1000, "R1", f.now.Add(-time.Hour))

	// A completed settlement 6 hours ago holds a daily company back.
	require.NoError(t, f.db.Create(&domain.Settlement{
		ID:                f.node.Generate(),
		CompanyID:         companyID,
		PeriodStart:       f.now.Add(-48 * time.Hour),
		PeriodEnd:         f.now.Add(-24 * time.Hour),
		GrossAmount:       decimal.NewFromInt(100),
		CommissionAmount:  decimal.NewFromInt(5),
		NetAmount:         decimal.NewFromInt(95),
		TransactionCount:  1,
		PayoutMethod:      "mobile_money",
		PayoutDestination: "254712345678",
		Status:            domain.StatusCompleted,
		CreatedAt:         f.now.Add(-6 * time.Hour),
	}).Error)

	due, err := f.svc.DueCompanies(context.Background())
	require.NoError(t, err)
	require.Empty(t, due)

	// Push the last settlement past the daily window.
	require.NoError(t, f.db.Model(&domain.Settlement{}).
		Where("company_id = ?", companyID).
		Update("created_at", f.now.Add(-25*time.Hour)).Error)

	due, err = f.svc.DueCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestSettleCompanyCompletes(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)
	f.seedEntry(t, companyID, 3000, "R1", f.now.Add(-2*time.Hour))
	f.seedEntry(t, companyID, 2100, "R2", f.now.Add(-time.Hour))

	settlement, err := f.svc.SettleCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, settlement.Status)
	require.Equal(t, "TXN9001", settlement.PayoutReference)
	require.True(t, settlement.NetAmount.Equal(decimal.NewFromInt(5100)))
	require.Equal(t, 2, settlement.TransactionCount)
	require.Equal(t, "mobile_money", settlement.PayoutMethod)
	require.Equal(t, "254712345678", settlement.PayoutDestination)
	require.True(t, settlement.PeriodStart.Before(settlement.PeriodEnd))

	var unsettled int64
	require.NoError(t, f.db.Model(&ledgerdomain.Entry{}).
		Where("company_id = ? AND settled = ?", companyID, false).
		Count(&unsettled).Error)
	require.Zero(t, unsettled)

	var entries []ledgerdomain.Entry
	require.NoError(t, f.db.Where("company_id = ?", companyID).Find(&entries).Error)
	for _, entry := range entries {
		require.NotNil(t, entry.SettlementID)
		require.Equal(t, settlement.ID, *entry.SettlementID)
	}

	require.True(t, f.balance(t, companyID).IsZero())
}

func TestSettleCompanyFailedPayoutLeavesLedgerUntouched(t *testing.T) {
	srv := payoutServer(t, false)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)
	f.seedEntry(t, companyID, 5100, "R1", f.now.Add(-time.Hour))

	settlement, err := f.svc.SettleCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, settlement.Status)
	require.NotEmpty(t, settlement.FailureReason)

	var unsettled int64
	require.NoError(t, f.db.Model(&ledgerdomain.Entry{}).
		Where("company_id = ? AND settled = ?", companyID, false).
		Count(&unsettled).Error)
	require.EqualValues(t, 1, unsettled)
	require.True(t, f.balance(t, companyID).Equal(decimal.NewFromInt(5100)))

	// The failed run does not block the next scheduled pass.
	due, err := f.svc.DueCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestSettleCompanyConcurrentEntryKeepsContribution(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)
	f.seedEntry(t, companyID, 2000, "R1", f.now.Add(-time.Hour))

	settlement, err := f.svc.SettleCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, settlement.Status)

	// An entry recorded between batch read and completion would have been
	// excluded from the settled set; its contribution must survive.
	f.seedEntry(t, companyID, 300, "R2", f.now)

	var sum decimal.NullDecimal
	require.NoError(t, f.db.Raw(
		`SELECT SUM(isp_amount) FROM commission_ledger_entries WHERE company_id = ? AND settled = ?`,
		companyID, false,
	).Scan(&sum).Error)
	require.True(t, f.balance(t, companyID).Equal(sum.Decimal))
}

func TestSettleCompanyNothingToSettle(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)

	_, err := f.svc.SettleCompany(context.Background(), companyID, true)
	require.ErrorIs(t, err, domain.ErrNothingToSettle)
}

func TestSettleCompanyUnverified(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, false, 100)
	f.seedEntry(t, companyID, 1000, "R1", f.now)

	_, err := f.svc.SettleCompany(context.Background(), companyID, true)
	require.ErrorIs(t, err, payoutdomain.ErrNotVerified)
}

func TestSettleCompanyForceBypassesMinimum(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 5000)
	f.seedEntry(t, companyID, 200, "R1", f.now.Add(-time.Hour))

	_, err := f.svc.SettleCompany(context.Background(), companyID, false)
	require.ErrorIs(t, err, domain.ErrNotDue)

	settlement, err := f.svc.SettleCompany(context.Background(), companyID, true)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, settlement.Status)
}

func TestSettleCompanyBlockedByProcessing(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)
	f.seedEntry(t, companyID, 1000, "R1", f.now)

	require.NoError(t, f.db.Create(&domain.Settlement{
		ID:                f.node.Generate(),
		CompanyID:         companyID,
		PeriodStart:       f.now.Add(-time.Hour),
		PeriodEnd:         f.now,
		GrossAmount:       decimal.NewFromInt(100),
		CommissionAmount:  decimal.NewFromInt(5),
		NetAmount:         decimal.NewFromInt(95),
		TransactionCount:  1,
		PayoutMethod:      "mobile_money",
		PayoutDestination: "254712345678",
		Status:            domain.StatusProcessing,
		CreatedAt:         f.now.Add(-2 * time.Hour),
	}).Error)

	_, err := f.svc.SettleCompany(context.Background(), companyID, true)
	require.ErrorIs(t, err, domain.ErrSettlementInProgress)
}

func TestListStuck(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	companyID := f.seedConfig(t, true, 100)

	require.NoError(t, f.db.Create(&domain.Settlement{
		ID:                f.node.Generate(),
		CompanyID:         companyID,
		PeriodStart:       f.now.Add(-48 * time.Hour),
		PeriodEnd:         f.now.Add(-24 * time.Hour),
		GrossAmount:       decimal.NewFromInt(100),
		CommissionAmount:  decimal.NewFromInt(5),
		NetAmount:         decimal.NewFromInt(95),
		TransactionCount:  1,
		PayoutMethod:      "mobile_money",
		PayoutDestination: "254712345678",
		Status:            domain.StatusProcessing,
		CreatedAt:         f.now.Add(-3 * time.Hour),
	}).Error)

	stuck, err := f.svc.ListStuck(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, stuck, 1)

	stuck, err = f.svc.ListStuck(context.Background(), 6*time.Hour)
	require.NoError(t, err)
	require.Empty(t, stuck)
}

func TestSettleAllDue(t *testing.T) {
	srv := payoutServer(t, true)
	f := setup(t, srv.URL)
	first := f.seedConfig(t, true, 100)
	second := f.seedConfig(t, true, 100)
	f.seedEntry(t, first, 1000, "R1", f.now.Add(-time.Hour))
	f.seedEntry(t, second, 2000, "R2", f.now.Add(-time.Hour))

	results, err := f.svc.SettleAllDue(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		require.Empty(t, result.Error)
		require.Equal(t, domain.StatusCompleted, result.Settlement.Status)
	}
}
