package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/netily/revenuepipe/internal/payout/domain"
	"github.com/netily/revenuepipe/internal/payout/repository"
	"github.com/netily/revenuepipe/internal/payout/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now(ctx context.Context) time.Time { return c.t }

func setupService(t *testing.T) (*service.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Config{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.NewService(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		Repo:  repository.NewRepository(db),
	})
	return svc, node
}

func mobileMoneyInput(companyID snowflake.ID) service.UpsertInput {
	return service.UpsertInput{
		CompanyID:           companyID,
		Method:              domain.MethodMobileMoney,
		MpesaPhone:          "254712345678",
		MpesaName:           "Acme Networks",
		SettlementFrequency: domain.FrequencyWeekly,
		MinimumPayout:       decimal.NewFromInt(1000),
	}
}

func TestUpsertCreatesConfig(t *testing.T) {
	svc, node := setupService(t)
	companyID := node.Generate()

	cfg, err := svc.Upsert(context.Background(), mobileMoneyInput(companyID))
	require.NoError(t, err)
	require.False(t, cfg.IsVerified)
	require.True(t, cfg.PendingBalance.IsZero())

	target, err := cfg.Destination()
	require.NoError(t, err)
	require.Equal(t, "mobile_money", target.Method())
	require.Equal(t, "254712345678", target.Destination())
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	svc, node := setupService(t)
	companyID := node.Generate()

	input := mobileMoneyInput(companyID)
	input.Method = "cheque"
	_, err := svc.Upsert(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrUnsupportedMethod)

	input = mobileMoneyInput(companyID)
	input.SettlementFrequency = "hourly"
	_, err = svc.Upsert(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrInvalidFrequency)

	input = mobileMoneyInput(companyID)
	input.MpesaPhone = ""
	_, err = svc.Upsert(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrMissingDestination)

	input = mobileMoneyInput(companyID)
	input.Method = domain.MethodBankTransfer
	_, err = svc.Upsert(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrMissingDestination)
}

func TestMarkVerified(t *testing.T) {
	svc, node := setupService(t)
	companyID := node.Generate()

	_, err := svc.Upsert(context.Background(), mobileMoneyInput(companyID))
	require.NoError(t, err)

	cfg, err := svc.MarkVerified(context.Background(), companyID)
	require.NoError(t, err)
	require.True(t, cfg.IsVerified)
	require.NotNil(t, cfg.VerifiedAt)

	_, err = svc.MarkVerified(context.Background(), node.Generate())
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestDestinationChangeRevokesVerification(t *testing.T) {
	svc, node := setupService(t)
	companyID := node.Generate()

	_, err := svc.Upsert(context.Background(), mobileMoneyInput(companyID))
	require.NoError(t, err)
	_, err = svc.MarkVerified(context.Background(), companyID)
	require.NoError(t, err)

	changed := mobileMoneyInput(companyID)
	changed.MpesaPhone = "254799999999"
	cfg, err := svc.Upsert(context.Background(), changed)
	require.NoError(t, err)
	require.False(t, cfg.IsVerified)
	require.Nil(t, cfg.VerifiedAt)
}

func TestNonDestinationChangeKeepsVerification(t *testing.T) {
	svc, node := setupService(t)
	companyID := node.Generate()

	_, err := svc.Upsert(context.Background(), mobileMoneyInput(companyID))
	require.NoError(t, err)
	_, err = svc.MarkVerified(context.Background(), companyID)
	require.NoError(t, err)

	changed := mobileMoneyInput(companyID)
	changed.SettlementFrequency = domain.FrequencyMonthly
	changed.MinimumPayout = decimal.NewFromInt(5000)
	cfg, err := svc.Upsert(context.Background(), changed)
	require.NoError(t, err)
	require.True(t, cfg.IsVerified)
	require.Equal(t, domain.FrequencyMonthly, cfg.SettlementFrequency)
}

func TestMethodSwitchRevokesVerification(t *testing.T) {
	svc, node := setupService(t)
	companyID := node.Generate()

	_, err := svc.Upsert(context.Background(), mobileMoneyInput(companyID))
	require.NoError(t, err)
	_, err = svc.MarkVerified(context.Background(), companyID)
	require.NoError(t, err)

	changed := mobileMoneyInput(companyID)
	changed.Method = domain.MethodBankTransfer
	changed.BankCode = "01"
	changed.BankName = "Equity"
	changed.BankAccountNumber = "0123456789"
	changed.BankAccountName = "Acme Networks Ltd"
	cfg, err := svc.Upsert(context.Background(), changed)
	require.NoError(t, err)
	require.False(t, cfg.IsVerified)

	target, err := cfg.Destination()
	require.NoError(t, err)
	require.Equal(t, "bank_transfer", target.Method())
}

func TestFrequencyDays(t *testing.T) {
	cases := map[string]int{
		domain.FrequencyDaily:    1,
		domain.FrequencyWeekly:   7,
		domain.FrequencyBiweekly: 14,
		domain.FrequencyMonthly:  28,
	}
	for frequency, want := range cases {
		days, err := domain.FrequencyDays(frequency)
		require.NoError(t, err)
		require.Equal(t, want, days)
	}

	_, err := domain.FrequencyDays("yearly")
	require.ErrorIs(t, err, domain.ErrInvalidFrequency)
}
