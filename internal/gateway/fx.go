package gateway

import (
	"github.com/netily/revenuepipe/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewFromConfig(cfg config.Config, log *zap.Logger) *Client {
	rate, err := decimal.NewFromString(cfg.CommissionRate)
	if err != nil {
		log.Warn("invalid commission_rate, using default 0.05", zap.String("value", cfg.CommissionRate))
		rate = decimal.RequireFromString("0.05")
	}

	return NewClient(Config{
		BaseURL:        cfg.GatewayBaseURL,
		APIUsername:    cfg.GatewayAPIUsername,
		APIPassword:    cfg.GatewayAPIPassword,
		CallbackURL:    cfg.GatewayCallbackURL,
		ChannelID:      cfg.GatewayChannelID,
		WebhookSecret:  cfg.GatewayWebhookSecret,
		AllowUnsigned:  cfg.WebhookAllowUnsigned,
		CommissionRate: rate,
		CountryCode:    cfg.CountryCode,
		Timeout:        cfg.GatewayTimeout,
	}, log)
}

var Module = fx.Module("gateway",
	fx.Provide(NewFromConfig),
)
