package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/core/port"
)

// LoggingDeliverer writes the plaintext code to the structured log instead of
// delivering it. Development escape hatch only: it is wired when
// verification.dev_delivery_log is set, and must never be reached from the
// production configuration path.
type LoggingDeliverer struct {
	logger *zap.Logger
}

// NewLoggingDeliverer constructs a deliverer backed by structured logging.
func NewLoggingDeliverer(log *zap.Logger) *LoggingDeliverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingDeliverer{logger: log}
}

func (d *LoggingDeliverer) Deliver(_ context.Context, code string) error {
	d.logger.Warn("dev delivery: one-time code logged instead of sent",
		zap.String("code", code),
	)
	return nil
}

var _ port.CodeDeliverer = (*LoggingDeliverer)(nil)
