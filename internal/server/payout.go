package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	payoutservice "github.com/netily/revenuepipe/internal/payout/service"
	"github.com/shopspring/decimal"
)

type upsertPayoutConfigRequest struct {
	Method string `json:"method" binding:"required"`

	MpesaPhone string `json:"mpesa_phone"`
	MpesaName  string `json:"mpesa_name"`

	BankCode          string `json:"bank_code"`
	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	BankAccountName   string `json:"bank_account_name"`
	BankBranch        string `json:"bank_branch"`

	SettlementFrequency string `json:"settlement_frequency" binding:"required"`
	MinimumPayout       string `json:"minimum_payout" binding:"required"`
}

func (s *Server) UpsertPayoutConfig(c *gin.Context) {
	companyID, err := snowflake.ParseString(c.Param("company_id"))
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}

	var req upsertPayoutConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, badRequest("method, settlement_frequency and minimum_payout are required"))
		return
	}

	minimum, err := decimal.NewFromString(req.MinimumPayout)
	if err != nil || minimum.IsNegative() {
		AbortWithError(c, badRequest("invalid minimum_payout"))
		return
	}

	cfg, err := s.payoutSvc.Upsert(c.Request.Context(), payoutservice.UpsertInput{
		CompanyID:           companyID,
		Method:              req.Method,
		MpesaPhone:          req.MpesaPhone,
		MpesaName:           req.MpesaName,
		BankCode:            req.BankCode,
		BankName:            req.BankName,
		BankAccountNumber:   req.BankAccountNumber,
		BankAccountName:     req.BankAccountName,
		BankBranch:          req.BankBranch,
		SettlementFrequency: req.SettlementFrequency,
		MinimumPayout:       minimum,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cfg)
}

func (s *Server) GetPayoutConfig(c *gin.Context) {
	companyID, err := snowflake.ParseString(c.Param("company_id"))
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}

	cfg, err := s.payoutSvc.Get(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cfg)
}

// VerifyPayoutConfig records a successful out-of-band destination check.
func (s *Server) VerifyPayoutConfig(c *gin.Context) {
	companyID, err := snowflake.ParseString(c.Param("company_id"))
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}

	cfg, err := s.payoutSvc.MarkVerified(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cfg)
}
