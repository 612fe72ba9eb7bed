package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netily/revenuepipe/internal/gateway"
	ledgerdomain "github.com/netily/revenuepipe/internal/ledger/domain"
	payoutdomain "github.com/netily/revenuepipe/internal/payout/domain"
	sessiondomain "github.com/netily/revenuepipe/internal/session/domain"
	settlementdomain "github.com/netily/revenuepipe/internal/settlement/domain"
)

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

var errBadRequest = errors.New("invalid request")

func badRequest(msg string) error {
	return errors.Join(errBadRequest, errors.New(msg))
}

// AbortWithError maps domain errors to HTTP statuses. Anything unmapped
// is a 500 with a generic body; internals never leak to clients.
func AbortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sessiondomain.ErrSessionNotFound),
		errors.Is(err, sessiondomain.ErrPlanNotFound),
		errors.Is(err, payoutdomain.ErrConfigNotFound),
		errors.Is(err, settlementdomain.ErrSettlementNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, sessiondomain.ErrPlanInactive),
		errors.Is(err, sessiondomain.ErrMissingPhone),
		errors.Is(err, payoutdomain.ErrUnsupportedMethod),
		errors.Is(err, payoutdomain.ErrInvalidFrequency),
		errors.Is(err, payoutdomain.ErrMissingDestination),
		errors.Is(err, ledgerdomain.ErrInvalidPaymentType),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, gateway.ErrValidation),
		errors.Is(err, errBadRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, payoutdomain.ErrNotVerified),
		errors.Is(err, settlementdomain.ErrNotDue),
		errors.Is(err, settlementdomain.ErrNothingToSettle),
		errors.Is(err, settlementdomain.ErrSettlementInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
