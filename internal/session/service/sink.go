package service

import (
	"context"

	"github.com/netily/revenuepipe/internal/session/domain"
	"go.uber.org/zap"
)

// logSink stands in for the RADIUS provisioning collaborator. It records
// activations so operators can replay them if provisioning is wired in
// later.
type logSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) domain.ActivationSink {
	return &logSink{log: log.Named("session.activation")}
}

func (s *logSink) SessionActivated(ctx context.Context, event domain.ActivationEvent) error {
	s.log.Info("session activation event",
		zap.String("session_ref", event.SessionRef),
		zap.String("company_id", event.CompanyID.String()),
		zap.String("mac_address", event.MacAddress),
		zap.Time("expires_at", event.ExpiresAt))
	return nil
}
