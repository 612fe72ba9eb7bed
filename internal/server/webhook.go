package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netily/revenuepipe/internal/gateway"
	sessionservice "github.com/netily/revenuepipe/internal/session/service"
	"go.uber.org/zap"
)

// signatureHeader is the HMAC header the provider sets on callbacks.
const signatureHeader = "X-PayHero-Signature"

// hotspotWebhookPayload covers the field-name variants the provider uses
// across callback scenarios.
type hotspotWebhookPayload struct {
	CheckoutRequestID  string `json:"CheckoutRequestID"`
	CheckoutRequestID2 string `json:"checkout_request_id"`
	Reference          string `json:"reference"`
	ExternalReference  string `json:"external_reference"`

	ResultCode  *int   `json:"ResultCode"`
	ResultCode2 *int   `json:"result_code"`
	ResultDesc  string `json:"ResultDesc"`
	ResultDesc2 string `json:"result_desc"`

	MpesaReceiptNumber string `json:"MpesaReceiptNumber"`
	MpesaReceipt       string `json:"mpesa_receipt"`
	ProviderReference  string `json:"provider_reference"`
}

func (p *hotspotWebhookPayload) checkoutID() string {
	for _, v := range []string{p.CheckoutRequestID, p.CheckoutRequestID2, p.Reference} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *hotspotWebhookPayload) resultCode() int {
	if p.ResultCode != nil {
		return *p.ResultCode
	}
	if p.ResultCode2 != nil {
		return *p.ResultCode2
	}
	return 0
}

func (p *hotspotWebhookPayload) resultDesc() string {
	if p.ResultDesc != "" {
		return p.ResultDesc
	}
	return p.ResultDesc2
}

func (p *hotspotWebhookPayload) receipt() string {
	for _, v := range []string{p.MpesaReceiptNumber, p.MpesaReceipt, p.ProviderReference} {
		if v != "" {
			return v
		}
	}
	return ""
}

// HotspotWebhook receives payment callbacks from the provider. The
// signature is checked over the exact raw bytes before anything else; a
// bad signature is rejected without touching session state.
func (s *Server) HotspotWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, badRequest("unreadable body"))
		return
	}

	if err := s.gw.VerifyWebhookSignature(rawBody, c.GetHeader(signatureHeader)); err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload hotspotWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		AbortWithError(c, badRequest("malformed payload"))
		return
	}

	checkoutID := payload.checkoutID()
	if checkoutID == "" {
		AbortWithError(c, badRequest("missing checkout id"))
		return
	}

	observed := gateway.StatusSuccess
	if payload.resultCode() != 0 {
		observed = gateway.StatusFailed
	}

	session, err := s.sessionSvc.Reconcile(c.Request.Context(), sessionservice.ReconcileInput{
		CheckoutID:    checkoutID,
		Status:        observed,
		Receipt:       payload.receipt(),
		FailureReason: payload.resultDesc(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("webhook processed",
		zap.String("checkout_id", checkoutID),
		zap.String("session_ref", session.SessionRef),
		zap.String("status", string(session.Status)))
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
