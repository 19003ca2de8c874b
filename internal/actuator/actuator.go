// File: internal/actuator/actuator.go
package actuator

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// Actuator performs the destination-side action for a validated event. The
// relay's correctness does not depend on what the actuator does internally,
// only on its returned outcome: a nil error means the event is done and its
// key may be marked processed.
type Actuator interface {
	Dispatch(ctx context.Context, event *models.ValidatedEvent) error
}

// NewActuator creates an actuator based on configuration
func NewActuator(cfg *config.ActuatorConfig) (Actuator, error) {
	switch strings.ToLower(cfg.Type) {
	case "log", "":
		return NewLogActuator(), nil
	case "webhook":
		return NewWebhookActuator(cfg), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Unsupported actuator type", cfg.Type)
	}
}

// LogActuator records the destination action it would take. It stands in for
// a real transaction relayer during development and always succeeds.
type LogActuator struct {
	logger *logrus.Logger
}

// NewLogActuator creates a new logging actuator
func NewLogActuator() *LogActuator {
	return &LogActuator{logger: utils.GetLogger()}
}

// Dispatch logs the would-be destination transaction.
func (a *LogActuator) Dispatch(ctx context.Context, event *models.ValidatedEvent) error {
	entry := a.logger.WithFields(logrus.Fields{
		"recipient":   event.Recipient.Hex(),
		"token":       event.Token.Hex(),
		"amount":      event.Amount.String(),
		"dest_chain":  event.DestChainID.String(),
		"nonce":       event.Nonce.String(),
		"source_tx":   event.TxHash,
		"block":       event.BlockNumber,
	})
	if event.AmountUSDEstimate != nil {
		entry = entry.WithField("amount_usd_estimate", *event.AmountUSDEstimate)
	}
	entry.Info("Dispatching destination chain action")
	return nil
}
