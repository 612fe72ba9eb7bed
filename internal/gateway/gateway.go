package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The gateway client is a stateless adapter to the payment provider. It
// holds no business state: collection, status and payout calls surface
// provider failures as result values so request handlers stay responsive.

var (
	// ErrMissingCredentials means the gateway is not configured. Calls
	// that need credentials fail immediately and are never retried.
	ErrMissingCredentials = errors.New("gateway credentials not configured")

	// ErrAuth is a rejected credential. Non-retryable.
	ErrAuth = errors.New("gateway authentication failed")

	// ErrValidation is a provider-side 4xx. Non-retryable.
	ErrValidation = errors.New("gateway rejected request")

	// ErrTimeout and ErrConnection are transport failures; ErrServer is a
	// provider 5xx. All three are retryable by the caller's own policy —
	// the client itself never retries.
	ErrTimeout    = errors.New("gateway request timed out")
	ErrConnection = errors.New("gateway connection failed")
	ErrServer     = errors.New("gateway server error")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Retryable reports whether the caller may usefully retry after err.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection) || errors.Is(err, ErrServer)
}

type Config struct {
	BaseURL     string
	APIUsername string
	APIPassword string
	CallbackURL string
	ChannelID   int

	WebhookSecret string
	// AllowUnsigned skips signature verification when no secret is set.
	// Development convenience; production deployments configure a secret.
	AllowUnsigned bool

	CommissionRate decimal.Decimal
	CountryCode    string

	Timeout time.Duration
}

const defaultTimeout = 30 * time.Second

type Client struct {
	cfg    Config
	log    *zap.Logger
	client *http.Client
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "254"
	}
	if cfg.CommissionRate.IsZero() {
		cfg.CommissionRate = decimal.RequireFromString("0.05")
	}
	if cfg.APIUsername == "" || cfg.APIPassword == "" {
		log.Warn("gateway credentials not configured")
	}
	return &Client{
		cfg:    cfg,
		log:    log.Named("gateway"),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c.cfg.APIUsername == "" || c.cfg.APIPassword == "" {
		return ErrMissingCredentials
	}

	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.APIUsername, c.cfg.APIPassword)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return ErrTimeout
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrConnection
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuth
	case resp.StatusCode >= http.StatusInternalServerError:
		return ErrServer
	case resp.StatusCode >= http.StatusBadRequest:
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return errors.Join(ErrValidation, errors.New(msg))
		}
		return ErrValidation
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Unparseable success bodies are treated conservatively by
		// callers (pending), never crashed on.
		return ErrServer
	}
	return nil
}
