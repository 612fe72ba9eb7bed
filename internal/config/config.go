package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries process-level configuration. Values come from the
// environment (REVENUEPIPE_* prefix) with an optional config file.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	DatabaseDSN string `mapstructure:"database_dsn"`

	// Gateway credentials. Missing credentials fail the first call that
	// needs them, not process startup, so read-only paths stay usable.
	GatewayBaseURL       string `mapstructure:"gateway_base_url"`
	GatewayAPIUsername   string `mapstructure:"gateway_api_username"`
	GatewayAPIPassword   string `mapstructure:"gateway_api_password"`
	GatewayCallbackURL   string `mapstructure:"gateway_callback_url"`
	GatewayChannelID     int    `mapstructure:"gateway_channel_id"`
	GatewayWebhookSecret string `mapstructure:"gateway_webhook_secret"`

	// WebhookAllowUnsigned accepts webhooks without a configured secret.
	// Development convenience only; production must set a secret.
	WebhookAllowUnsigned bool `mapstructure:"webhook_allow_unsigned"`

	CommissionRate string `mapstructure:"commission_rate"`
	CountryCode    string `mapstructure:"country_code"`

	// SeedDemo populates a demo plan catalog and payout config at startup.
	SeedDemo bool `mapstructure:"seed_demo"`

	GatewayTimeout         time.Duration `mapstructure:"gateway_timeout"`
	SessionTimeout         time.Duration `mapstructure:"session_timeout"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	SettlementScanInterval time.Duration `mapstructure:"settlement_scan_interval"`
}

func Load() (Config, error) {
	// Local development reads a .env file; deployed environments set real
	// environment variables and have no such file.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("database_dsn", "")
	v.SetDefault("gateway_base_url", "https://backend.payhero.co.ke/api/v2")
	v.SetDefault("gateway_channel_id", 1180)
	v.SetDefault("webhook_allow_unsigned", false)
	v.SetDefault("seed_demo", false)
	v.SetDefault("commission_rate", "0.05")
	v.SetDefault("country_code", "254")
	v.SetDefault("gateway_timeout", 30*time.Second)
	v.SetDefault("session_timeout", 10*time.Minute)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("settlement_scan_interval", time.Hour)

	v.SetEnvPrefix("REVENUEPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("revenuepipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/revenuepipe")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
