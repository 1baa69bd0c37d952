package notify

import (
	"context"
	"errors"

	"login-service/internal/models"
	"login-service/internal/util"

	"go.uber.org/zap"
)

// ErrDeliveryFailed marks a notifier failure. Issuance is not rolled back
// on delivery failure, so callers match with errors.Is and surface the
// problem as a warning rather than a hard error.
var ErrDeliveryFailed = errors.New("failed to deliver passcode")

// Notifier dispatches a one-time passcode to a destination over the given
// channel.
type Notifier interface {
	Send(ctx context.Context, destination, code string, method models.DeliveryMethod) error
}

// LogNotifier writes the passcode to the log instead of dispatching it.
// It stands in for a real email/SMS provider in development.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier that logs instead of sending.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the code and destination. It never fails.
func (n *LogNotifier) Send(ctx context.Context, destination, code string, method models.DeliveryMethod) error {
	n.logger.Info("Dispatching one-time passcode",
		util.String("method", string(method)),
		util.String("destination", destination),
		util.String("code", code),
	)
	return nil
}
