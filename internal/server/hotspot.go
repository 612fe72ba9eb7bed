package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	sessionservice "github.com/netily/revenuepipe/internal/session/service"
)

type startPurchaseRequest struct {
	CompanyID  string `json:"company_id" binding:"required"`
	PlanID     string `json:"plan_id" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	MacAddress string `json:"mac_address"`
	RouterRef  string `json:"router_ref"`
}

// StartPurchase begins a hotspot purchase: creates the session and fires
// the STK push. Gateway refusals come back as a failed result with HTTP
// 200; the portal shows the message and lets the customer retry.
func (s *Server) StartPurchase(c *gin.Context) {
	var req startPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, badRequest("company_id, plan_id and phone are required"))
		return
	}

	companyID, err := snowflake.ParseString(req.CompanyID)
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}
	planID, err := snowflake.ParseString(req.PlanID)
	if err != nil {
		AbortWithError(c, badRequest("invalid plan_id"))
		return
	}

	result, err := s.sessionSvc.StartPurchase(c.Request.Context(), sessionservice.StartPurchaseInput{
		CompanyID:  companyID,
		PlanID:     planID,
		Phone:      req.Phone,
		MacAddress: strings.ToUpper(strings.TrimSpace(req.MacAddress)),
		RouterRef:  req.RouterRef,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

// PurchaseStatus is the portal's poll endpoint. It only ever answers
// with the closed public vocabulary.
func (s *Server) PurchaseStatus(c *gin.Context) {
	sessionRef := c.Param("session_ref")

	result, err := s.sessionSvc.Status(c.Request.Context(), sessionRef)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) ListPlans(c *gin.Context) {
	companyID, err := snowflake.ParseString(c.Query("company_id"))
	if err != nil {
		AbortWithError(c, badRequest("invalid company_id"))
		return
	}

	plans, err := s.sessionSvc.ListPlans(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, plans)
}
