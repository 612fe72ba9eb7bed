package server

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// RunSettlements settles every due company now. The scheduler calls the
// same service path on its own cadence; this is the manual trigger.
func (s *Server) RunSettlements(c *gin.Context) {
	results, err := s.settlementSvc.SettleAllDue(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, results)
}

func (s *Server) RunCompanySettlement(c *gin.Context) {
	companyID, err := snowflake.ParseString(c.Param("company_id"))
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}
	force := c.Query("force") == "true"

	settlement, err := s.settlementSvc.SettleCompany(c.Request.Context(), companyID, force)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, settlement)
}

func (s *Server) ListSettlements(c *gin.Context) {
	companyID, err := snowflake.ParseString(c.Param("company_id"))
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}

	settlements, err := s.settlementSvc.ListByCompany(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, settlements)
}

// CompanyBalance reports the cached pending balance next to the ledger
// recomputation so operators can spot drift.
func (s *Server) CompanyBalance(c *gin.Context) {
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
	total, err := s.ledgerSvc.UnsettledTotal(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{
		"company_id":       companyID.String(),
		"pending_balance":  cfg.PendingBalance,
		"unsettled_total":  total,
		"minimum_payout":   cfg.MinimumPayout,
		"is_verified":      cfg.IsVerified,
		"balance_in_drift": !cfg.PendingBalance.Equal(total),
	})
}

// ListStuckSettlements surfaces processing settlements older than the
// given age (default one hour) for manual reconciliation.
func (s *Server) ListStuckSettlements(c *gin.Context) {
	olderThan := time.Hour
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			AbortWithError(c, badRequest("invalid older_than duration"))
			return
		}
		olderThan = parsed
	}

	stuck, err := s.settlementSvc.ListStuck(c.Request.Context(), olderThan)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, stuck)
}
