// File: internal/reconciler/reconciler.go
package reconciler

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/metrics"
	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/internal/oracle"
	"github.com/smartdevs17/bridge-relay/internal/scanner"
	"github.com/smartdevs17/bridge-relay/internal/storage"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// LedgerClient is the slice of the source chain client the reconciler needs.
type LedgerClient interface {
	FetchLogs(ctx context.Context, contract common.Address, eventSig common.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
}

// Actuator performs the destination-side action for a validated event.
type Actuator interface {
	Dispatch(ctx context.Context, event *models.ValidatedEvent) error
}

// Reconciler fetches raw bridge events for a block range, deduplicates them
// against the store, validates and orders the remainder, and drives the
// actuator exactly once per logical event.
type Reconciler struct {
	ledger   LedgerClient
	store    storage.Store
	oracle   oracle.PriceOracle
	actuator Actuator
	parser   *EventParser
	contract common.Address
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	EventsFound int `json:"events_found"`
	Dispatched  int `json:"dispatched"`
	Skipped     int `json:"skipped"`
	Invalid     int `json:"invalid"`
	Failed      int `json:"failed"`
}

// New creates a reconciler. The metrics manager may be nil.
func New(
	ledger LedgerClient,
	store storage.Store,
	priceOracle oracle.PriceOracle,
	act Actuator,
	contract common.Address,
	m *metrics.Metrics,
) (*Reconciler, error) {
	parser, err := NewEventParser()
	if err != nil {
		return nil, err
	}

	return &Reconciler{
		ledger:   ledger,
		store:    store,
		oracle:   priceOracle,
		actuator: act,
		parser:   parser,
		contract: contract,
		logger:   utils.GetLogger(),
		metrics:  m,
	}, nil
}

// Fetch retrieves raw TokensLocked logs for the range. Errors keep their
// classification from the ledger client: RANGE_UNAVAILABLE for a reorg gap,
// CONNECTION_ERROR for everything infrastructural.
func (r *Reconciler) Fetch(ctx context.Context, rng scanner.Range) ([]types.Log, error) {
	logs, err := r.ledger.FetchLogs(ctx, r.contract, r.parser.EventID(), rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// Process reconciles a batch of raw logs. Per-event validation and dispatch
// failures are recorded and do not abort the batch; only infrastructure
// failures (store unavailable) return an error, which the driver treats as
// grounds to abandon the cycle without advancing the checkpoint.
func (r *Reconciler) Process(ctx context.Context, logs []types.Log) (*BatchResult, error) {
	result := &BatchResult{EventsFound: len(logs)}

	events := make([]*models.TransferEvent, 0, len(logs))
	for _, log := range logs {
		event, err := r.parser.ParseLog(log)
		if err != nil {
			result.Invalid++
			r.recordInvalid()
			r.logger.Error("Failed to decode event log", "tx_hash", log.TxHash.Hex(), "error", err)
			continue
		}
		events = append(events, event)
	}

	// (blockNumber, logIndex) ascending is the only ordering guarantee the
	// relay offers; downstream consumers may assume monotonic nonce delivery.
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	for _, event := range events {
		key := event.Key()

		processed, err := r.store.IsProcessed(ctx, key)
		if err != nil {
			return result, err
		}
		if processed {
			// Overlapping scan after a retry; idempotent no-op.
			result.Skipped++
			r.recordDuplicate()
			r.logger.Debug("Skipping already processed event", "key", key.String())
			continue
		}

		if err := ValidateEvent(event); err != nil {
			result.Invalid++
			r.recordInvalid()
			r.logger.Error("Event failed validation", "key", key.String(), "error", err)
			continue
		}

		validated := r.enrich(ctx, event)

		if err := r.actuator.Dispatch(ctx, validated); err != nil {
			result.Failed++
			r.recordDispatchFailure()
			r.logger.Error("Actuator dispatch failed", "key", key.String(), "error", err)

			fd := &models.FailedDispatch{
				EventKey:    key.String(),
				BlockNumber: event.BlockNumber,
				Reason:      err.Error(),
			}
			if recErr := r.store.RecordFailedDispatch(ctx, fd); recErr != nil {
				return result, recErr
			}
			continue
		}

		if err := r.store.MarkProcessed(ctx, key, event.BlockNumber); err != nil {
			return result, err
		}

		result.Dispatched++
		r.recordProcessed()
		r.logger.Info("Event reconciled",
			"key", key.String(),
			"block", event.BlockNumber,
			"nonce", event.Nonce.String())
	}

	return result, nil
}

// enrich attaches a best-effort fiat estimate. Oracle failure never blocks
// processing.
func (r *Reconciler) enrich(ctx context.Context, event *models.TransferEvent) *models.ValidatedEvent {
	validated := &models.ValidatedEvent{
		TransferEvent: *event,
		ValidatedAt:   time.Now(),
	}

	if r.oracle == nil {
		return validated
	}

	price, ok := r.oracle.PriceUSD(ctx, event.Token)
	if !ok {
		return validated
	}

	amount := new(big.Float).SetInt(event.Amount)
	amount.Quo(amount, big.NewFloat(1e18))
	amount.Mul(amount, big.NewFloat(price))
	estimate, _ := amount.Float64()
	validated.AmountUSDEstimate = &estimate

	return validated
}

func (r *Reconciler) recordProcessed() {
	if r.metrics != nil {
		r.metrics.EventsProcessedTotal.WithLabelValues("success").Inc()
	}
}

func (r *Reconciler) recordInvalid() {
	if r.metrics != nil {
		r.metrics.EventsProcessedTotal.WithLabelValues("invalid").Inc()
		r.metrics.InvalidEventsTotal.Inc()
	}
}

func (r *Reconciler) recordDuplicate() {
	if r.metrics != nil {
		r.metrics.DuplicatesSkipped.Inc()
	}
}

func (r *Reconciler) recordDispatchFailure() {
	if r.metrics != nil {
		r.metrics.EventsProcessedTotal.WithLabelValues("failed").Inc()
		r.metrics.DispatchFailuresTotal.Inc()
	}
}
