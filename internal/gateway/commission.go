package gateway

import "github.com/shopspring/decimal"

// CommissionSplit divides a gross payment between the platform operator
// and the ISP. Commission + ISPAmount always reconstructs Gross exactly.
type CommissionSplit struct {
	Gross      decimal.Decimal
	Rate       decimal.Decimal
	Commission decimal.Decimal
	ISPAmount  decimal.Decimal
}

// ComputeCommission splits amount at the given rate, rounding the
// commission half-up to 2 decimal places. The ISP share is the remainder,
// so no rounding drift is possible.
func ComputeCommission(amount, rate decimal.Decimal) CommissionSplit {
	commission := amount.Mul(rate).Round(2)
	return CommissionSplit{
		Gross:      amount,
		Rate:       rate,
		Commission: commission,
		ISPAmount:  amount.Sub(commission),
	}
}

// ComputeCommission uses the client's configured rate.
func (c *Client) ComputeCommission(amount decimal.Decimal) CommissionSplit {
	return ComputeCommission(amount, c.cfg.CommissionRate)
}

// CommissionRate exposes the configured rate for callers that record a
// rate snapshot alongside derived amounts.
func (c *Client) CommissionRate() decimal.Decimal {
	return c.cfg.CommissionRate
}
