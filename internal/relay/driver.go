// File: internal/relay/driver.go
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/connection"
	"github.com/smartdevs17/bridge-relay/internal/metrics"
	"github.com/smartdevs17/bridge-relay/internal/reconciler"
	"github.com/smartdevs17/bridge-relay/internal/scanner"
	"github.com/smartdevs17/bridge-relay/internal/storage"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// State identifies where the driver is in its cycle.
type State string

const (
	StateIdle         State = "idle"
	StateScanning     State = "scanning"
	StateFetching     State = "fetching"
	StateProcessing   State = "processing"
	StateCommitting   State = "committing"
	StateSleeping     State = "sleeping"
	StateErrorBackoff State = "error_backoff"
	StateStopped      State = "stopped"
)

// AllStates lists every driver state, for metrics labeling.
var AllStates = []State{
	StateIdle, StateScanning, StateFetching, StateProcessing,
	StateCommitting, StateSleeping, StateErrorBackoff, StateStopped,
}

// Driver owns the poll loop: one scan/fetch/process/commit cycle at a time,
// cancellation checked once per cycle, infrastructure failures routed to a
// backoff state instead of crashing the process. It terminates only on
// context cancellation.
type Driver struct {
	ledger     connection.Manager
	store      storage.Store
	scanner    *scanner.Scanner
	reconciler *reconciler.Reconciler
	config     *config.RelayConfig
	logger     *logrus.Logger
	metrics    *metrics.Metrics

	mu    sync.RWMutex
	state State
	stats DriverStats
}

// DriverStats provides poll loop statistics
type DriverStats struct {
	StartTime      time.Time  `json:"start_time"`
	Cycles         uint64     `json:"cycles"`
	RangesScanned  uint64     `json:"ranges_scanned"`
	EventsFound    uint64     `json:"events_found"`
	Dispatched     uint64     `json:"dispatched"`
	Skipped        uint64     `json:"skipped"`
	Invalid        uint64     `json:"invalid"`
	Failed         uint64     `json:"failed"`
	Backoffs       uint64     `json:"backoffs"`
	LastFrom       uint64     `json:"last_from"`
	LastTo         uint64     `json:"last_to"`
	LastError      *string    `json:"last_error,omitempty"`
	LastErrorTime  *time.Time `json:"last_error_time,omitempty"`
	State          State      `json:"state"`
}

// NewDriver creates a poll loop driver. The metrics manager may be nil.
func NewDriver(
	ledger connection.Manager,
	store storage.Store,
	sc *scanner.Scanner,
	rec *reconciler.Reconciler,
	cfg *config.RelayConfig,
	m *metrics.Metrics,
) *Driver {
	return &Driver{
		ledger:     ledger,
		store:      store,
		scanner:    sc,
		reconciler: rec,
		config:     cfg,
		logger:     utils.GetLogger(),
		metrics:    m,
		state:      StateIdle,
	}
}

// State returns the driver's current state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Stats returns a snapshot of the driver statistics.
func (d *Driver) Stats() DriverStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := d.stats
	stats.State = d.state
	return stats
}

// Run executes the poll loop until the context is cancelled. Recoverable
// errors never terminate it.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	d.stats.StartTime = time.Now()
	d.mu.Unlock()

	d.logger.Info("Poll loop started",
		"poll_interval", d.config.PollInterval,
		"confirmations", d.config.ConfirmationBlocks)

	for {
		select {
		case <-ctx.Done():
			d.setState(StateStopped)
			d.logger.Info("Poll loop stopped")
			return ctx.Err()
		default:
		}

		start := time.Now()
		err := d.runCycle(ctx)
		if d.metrics != nil {
			d.metrics.RecordCycle(time.Since(start))
		}

		d.mu.Lock()
		d.stats.Cycles++
		d.mu.Unlock()

		switch {
		case err == nil:
			if stopped := d.sleep(ctx, d.config.PollInterval, StateSleeping); stopped {
				return ctx.Err()
			}
		case utils.IsConnectionError(err):
			d.recordError(err)
			d.recordConnectionError("cycle")
			d.logger.Error("Connection failure during cycle, attempting reconnect", "error", err)
			if recErr := d.ledger.Reconnect(ctx); recErr != nil {
				d.recordConnectionError("reconnect")
				d.logger.Error("Reconnect failed", "error", recErr)
			}
			if stopped := d.backoff(ctx); stopped {
				return ctx.Err()
			}
		default:
			d.recordError(err)
			d.logger.Error("Cycle abandoned", "error", err)
			if stopped := d.backoff(ctx); stopped {
				return ctx.Err()
			}
		}
	}
}

// runCycle runs a single scan/fetch/process/commit cycle. A nil return means
// the cycle completed (possibly with nothing to scan); any error means the
// cycle was abandoned without a checkpoint commit. Unexpected panics are
// converted to internal errors at this boundary so the loop survives them.
func (d *Driver) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = utils.NewAppError(utils.ErrCodeInternal, "Unexpected failure in poll cycle",
				fmt.Sprintf("%v", r)).WithStackTrace()
		}
	}()

	d.setState(StateScanning)

	height, err := d.ledger.CurrentHeight(ctx)
	if err != nil {
		return err
	}

	var checkpoint *uint64
	cp, ok, err := d.store.GetCheckpoint(ctx)
	if err != nil {
		return err
	}
	if ok {
		checkpoint = &cp
	}

	rng, hasWork := d.scanner.NextRange(checkpoint, height)
	if !hasWork {
		d.logger.Debug("No new confirmed blocks to process", "height", height)
		d.setState(StateIdle)
		return nil
	}

	d.logger.Info("Scanning for bridge events", "from", rng.From, "to", rng.To, "height", height)

	d.setState(StateFetching)
	logs, err := d.reconciler.Fetch(ctx, rng)
	if err != nil {
		if utils.IsRangeUnavailable(err) {
			// Reorg at the range boundary: treat as no events this cycle and
			// retry the same range after the next poll. No backoff, no commit.
			d.logger.Warn("Block range unavailable, retrying next cycle",
				"from", rng.From, "to", rng.To, "error", err)
			d.setState(StateIdle)
			return nil
		}
		return err
	}

	d.setState(StateProcessing)
	result, err := d.reconciler.Process(ctx, logs)
	if result != nil {
		d.accumulate(rng, result)
	}
	if err != nil {
		return err
	}

	d.setState(StateCommitting)
	if err := d.store.SetCheckpoint(ctx, rng.To); err != nil {
		return err
	}

	if d.metrics != nil {
		d.metrics.CheckpointBlock.Set(float64(rng.To))
		d.metrics.BlocksBehind.Set(0)
		d.metrics.RangesScanned.Inc()
	}

	d.logger.Info("Cycle committed",
		"from", rng.From,
		"to", rng.To,
		"events_found", result.EventsFound,
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
		"failed", result.Failed)

	d.setState(StateIdle)
	return nil
}

// sleep waits for the given duration or until cancellation.
func (d *Driver) sleep(ctx context.Context, duration time.Duration, state State) bool {
	d.setState(state)
	select {
	case <-ctx.Done():
		d.setState(StateStopped)
		return true
	case <-time.After(duration):
		return false
	}
}

// backoff sleeps for a multiple of the poll interval after an infrastructure
// failure.
func (d *Driver) backoff(ctx context.Context) bool {
	d.mu.Lock()
	d.stats.Backoffs++
	d.mu.Unlock()

	delay := d.config.PollInterval * time.Duration(d.config.BackoffMultiplier)
	d.logger.Info("Entering error backoff", "delay", delay)
	return d.sleep(ctx, delay, StateErrorBackoff)
}

func (d *Driver) setState(state State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()

	if d.metrics != nil {
		all := make([]string, len(AllStates))
		for i, s := range AllStates {
			all[i] = string(s)
		}
		d.metrics.SetDriverState(string(state), all)
	}
}

func (d *Driver) accumulate(rng scanner.Range, result *reconciler.BatchResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.RangesScanned++
	d.stats.EventsFound += uint64(result.EventsFound)
	d.stats.Dispatched += uint64(result.Dispatched)
	d.stats.Skipped += uint64(result.Skipped)
	d.stats.Invalid += uint64(result.Invalid)
	d.stats.Failed += uint64(result.Failed)
	d.stats.LastFrom = rng.From
	d.stats.LastTo = rng.To
}

func (d *Driver) recordConnectionError(errorType string) {
	if d.metrics != nil {
		d.metrics.ConnectionErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

func (d *Driver) recordError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg := err.Error()
	now := time.Now()
	d.stats.LastError = &msg
	d.stats.LastErrorTime = &now
}
