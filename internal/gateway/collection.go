package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusQueued    PaymentStatus = "queued"
	StatusSuccess   PaymentStatus = "success"
	StatusFailed    PaymentStatus = "failed"
	StatusCancelled PaymentStatus = "cancelled"
	StatusExpired   PaymentStatus = "expired"
)

// Terminal reports whether the provider will not change this status again.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CollectionResult is returned by InitiateCollection. Failures are carried
// in the result, never as an error, so HTTP handlers can always respond.
type CollectionResult struct {
	Success    bool
	CheckoutID string
	Reference  string
	Message    string
	Status     PaymentStatus
}

// StatusResult is returned by GetStatus.
type StatusResult struct {
	Status        PaymentStatus
	Amount        decimal.Decimal
	Receipt       string
	PhoneNumber   string
	CompletedAt   *time.Time
	FailureReason string
}

// InitiateCollection starts a mobile-money push for the given phone and
// amount. reference must be unique per purchase attempt; it is echoed back
// on the webhook.
func (c *Client) InitiateCollection(ctx context.Context, phone string, amount decimal.Decimal, reference, description, callbackURL string) CollectionResult {
	if callbackURL == "" {
		callbackURL = c.cfg.CallbackURL
	}

	payload := map[string]any{
		"amount":             amount.IntPart(),
		"phone_number":       c.NormalizePhone(phone),
		"channel_id":         c.cfg.ChannelID,
		"provider":           "m-pesa",
		"external_reference": reference,
		"callback_url":       callbackURL,
	}
	if description != "" {
		payload["description"] = description
	}

	var resp struct {
		Success   bool   `json:"success"`
		Status    string `json:"status"`
		Reference string `json:"reference"`
		ID        string `json:"id"`
		Message   string `json:"message"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/payments", payload, &resp); err != nil {
		c.log.Error("collection initiation failed", zap.String("reference", reference), zap.Error(err))
		return CollectionResult{
			Success:   false,
			Reference: reference,
			Message:   err.Error(),
			Status:    StatusFailed,
		}
	}

	success := resp.Success || strings.EqualFold(resp.Status, "QUEUED")
	checkoutID := resp.Reference
	if checkoutID == "" {
		checkoutID = resp.ID
	}
	message := resp.Message
	if message == "" {
		message = "collection initiated"
	}
	status := StatusFailed
	if success {
		status = StatusQueued
	}
	return CollectionResult{
		Success:    success,
		CheckoutID: checkoutID,
		Reference:  reference,
		Message:    message,
		Status:     status,
	}
}

// GetStatus queries the provider for the state of a checkout. Unknown or
// unparseable provider responses come back as pending so pollers retry
// instead of failing a payment prematurely.
func (c *Client) GetStatus(ctx context.Context, checkoutRef string) StatusResult {
	var resp struct {
		Status            string          `json:"status"`
		Amount            decimal.Decimal `json:"amount"`
		ProviderReference string          `json:"provider_reference"`
		MpesaReceipt      string          `json:"mpesa_receipt"`
		PhoneNumber       string          `json:"phone_number"`
		CompletedAt       string          `json:"completed_at"`
		FailureReason     string          `json:"failure_reason"`
		ResultDescription string          `json:"result_description"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/payments/"+checkoutRef, nil, &resp); err != nil {
		c.log.Warn("status query failed", zap.String("checkout", checkoutRef), zap.Error(err))
		return StatusResult{Status: StatusPending, FailureReason: err.Error()}
	}

	receipt := resp.ProviderReference
	if receipt == "" {
		receipt = resp.MpesaReceipt
	}
	reason := resp.FailureReason
	if reason == "" {
		reason = resp.ResultDescription
	}

	var completedAt *time.Time
	if resp.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.CompletedAt); err == nil {
			completedAt = &t
		}
	}

	return StatusResult{
		Status:        mapProviderStatus(resp.Status),
		Amount:        resp.Amount,
		Receipt:       receipt,
		PhoneNumber:   resp.PhoneNumber,
		CompletedAt:   completedAt,
		FailureReason: reason,
	}
}

func mapProviderStatus(raw string) PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS", "SUCCESSFUL", "COMPLETED":
		return StatusSuccess
	case "QUEUED":
		return StatusQueued
	case "FAILED":
		return StatusFailed
	case "CANCELLED":
		return StatusCancelled
	case "EXPIRED":
		return StatusExpired
	case "PENDING":
		return StatusPending
	default:
		return StatusPending
	}
}
