package gateway

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayoutResult is returned by all payout variants. Like collections,
// failures are carried in the result rather than raised.
type PayoutResult struct {
	Success       bool
	TransactionID string
	Message       string
}

// PayoutMethod is a settlement destination. The two implementations are
// MobileMoneyDestination and BankDestination; the settlement service never
// branches on a method string.
type PayoutMethod interface {
	Method() string
	Destination() string
	Payout(ctx context.Context, c *Client, amount decimal.Decimal, reference, reason string) PayoutResult
}

type MobileMoneyDestination struct {
	Phone string
	Name  string
}

func (d MobileMoneyDestination) Method() string      { return "mobile_money" }
func (d MobileMoneyDestination) Destination() string { return d.Phone }

func (d MobileMoneyDestination) Payout(ctx context.Context, c *Client, amount decimal.Decimal, reference, reason string) PayoutResult {
	return c.MobileMoneyPayout(ctx, d.Phone, amount, reference, reason)
}

type BankDestination struct {
	BankCode      string
	AccountNumber string
	AccountName   string
}

func (d BankDestination) Method() string      { return "bank_transfer" }
func (d BankDestination) Destination() string { return d.BankCode + ":" + d.AccountNumber }

func (d BankDestination) Payout(ctx context.Context, c *Client, amount decimal.Decimal, reference, reason string) PayoutResult {
	return c.BankTransfer(ctx, d.BankCode, d.AccountNumber, d.AccountName, amount, reference, reason)
}

// MobileMoneyPayout sends a B2C disbursement to a phone number.
func (c *Client) MobileMoneyPayout(ctx context.Context, phone string, amount decimal.Decimal, reference, reason string) PayoutResult {
	payload := map[string]any{
		"phone_number": c.NormalizePhone(phone),
		"amount":       amount.IntPart(),
		"reference":    reference,
		"reason":       reason,
	}
	return c.sendPayout(ctx, "/disbursements", payload, reference)
}

// BankTransfer sends a settlement to a bank account.
func (c *Client) BankTransfer(ctx context.Context, bankCode, accountNumber, accountName string, amount decimal.Decimal, reference, narration string) PayoutResult {
	payload := map[string]any{
		"bank_code":      bankCode,
		"account_number": accountNumber,
		"account_name":   accountName,
		"amount":         amount.IntPart(),
		"reference":      reference,
		"narration":      narration,
	}
	return c.sendPayout(ctx, "/bank-transfers", payload, reference)
}

func (c *Client) sendPayout(ctx context.Context, path string, payload map[string]any, reference string) PayoutResult {
	var resp struct {
		Success       bool   `json:"success"`
		TransactionID string `json:"transaction_id"`
		Reference     string `json:"reference"`
		Message       string `json:"message"`
	}
	if err := c.doRequest(ctx, http.MethodPost, path, payload, &resp); err != nil {
		c.log.Error("payout failed", zap.String("reference", reference), zap.Error(err))
		return PayoutResult{Success: false, Message: err.Error()}
	}

	txID := resp.TransactionID
	if txID == "" {
		txID = resp.Reference
	}
	message := resp.Message
	if message == "" {
		message = "payout initiated"
	}
	return PayoutResult{Success: resp.Success, TransactionID: txID, Message: message}
}
