// File: internal/actuator/webhook.go
package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// WebhookActuator posts validated events to a relayer endpoint that performs
// the actual destination-chain transaction. A non-2xx response is a dispatch
// failure; the reconciler will not mark the key processed.
type WebhookActuator struct {
	config     *config.ActuatorConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// WebhookPayload defines the dispatch payload structure
type WebhookPayload struct {
	Event     *models.ValidatedEvent `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type"`
}

// NewWebhookActuator creates a new webhook actuator
func NewWebhookActuator(cfg *config.ActuatorConfig) *WebhookActuator {
	return &WebhookActuator{
		config: cfg,
		logger: utils.GetLogger(),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Dispatch posts the event to the configured relayer endpoint.
func (a *WebhookActuator) Dispatch(ctx context.Context, event *models.ValidatedEvent) error {
	payload := WebhookPayload{
		Event:     event,
		Timestamp: time.Now(),
		Source:    "bridge-relay",
		Type:      "tokens_locked",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeActuator, "Failed to marshal dispatch payload", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeActuator, "Failed to build dispatch request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeActuator, "Dispatch request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewAppError(utils.ErrCodeActuator, "Dispatch rejected",
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	a.logger.Debug("Dispatch accepted", "key", event.Key().String(), "status", resp.StatusCode)
	return nil
}
