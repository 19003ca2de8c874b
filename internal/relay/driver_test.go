package relay

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/connection"
	"github.com/smartdevs17/bridge-relay/internal/metrics"
	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/internal/reconciler"
	"github.com/smartdevs17/bridge-relay/internal/scanner"
	"github.com/smartdevs17/bridge-relay/internal/storage"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

var testContract = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

type fetchCall struct {
	from, to uint64
}

// fakeLedger implements connection.Manager against canned chain state.
type fakeLedger struct {
	mu         sync.Mutex
	height     uint64
	logs       []types.Log
	heightErr  error
	fetchErr   error
	panics     bool
	fetches    []fetchCall
	reconnects int
}

func (f *fakeLedger) CurrentHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("node client in inconsistent state")
	}
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeLedger) FetchLogs(ctx context.Context, contract common.Address, eventSig common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, fetchCall{fromBlock, toBlock})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var matched []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			matched = append(matched, log)
		}
	}
	return matched, nil
}

func (f *fakeLedger) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.heightErr = nil
	f.fetchErr = nil
	return nil
}

func (f *fakeLedger) IsConnected() bool { return true }
func (f *fakeLedger) Close() error      { return nil }

func (f *fakeLedger) Stats() connection.ConnectionStats {
	return connection.ConnectionStats{IsHealthy: true}
}

func (f *fakeLedger) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

// recordingActuator counts dispatches.
type recordingActuator struct {
	mu         sync.Mutex
	dispatched []models.EventKey
}

func (a *recordingActuator) Dispatch(ctx context.Context, event *models.ValidatedEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dispatched = append(a.dispatched, event.Key())
	return nil
}

func lockedLog(t *testing.T, block uint64, logIndex uint, tx string) types.Log {
	t.Helper()
	parser, err := reconciler.NewEventParser()
	require.NoError(t, err)

	pad := func(b []byte) common.Hash { return common.BytesToHash(common.LeftPadBytes(b, 32)) }
	var data []byte
	for _, v := range []*big.Int{big.NewInt(1000), big.NewInt(5), big.NewInt(int64(block))} {
		data = append(data, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return types.Log{
		Address:     testContract,
		BlockNumber: block,
		BlockHash:   common.HexToHash(fmt.Sprintf("0xb%x", block)),
		TxHash:      common.HexToHash(tx),
		Index:       logIndex,
		Topics: []common.Hash{
			parser.EventID(),
			pad(common.HexToAddress("0x1111111111111111111111111111111111111111").Bytes()),
			pad(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
			pad(common.HexToAddress("0x3333333333333333333333333333333333333333").Bytes()),
		},
		Data: data,
	}
}

func newTestDriver(t *testing.T, ledger *fakeLedger, store storage.Store) (*Driver, *recordingActuator) {
	t.Helper()
	act := &recordingActuator{}
	rec, err := reconciler.New(ledger, store, nil, act, testContract, nil)
	require.NoError(t, err)

	cfg := &config.RelayConfig{
		PollInterval:       10 * time.Millisecond,
		ConfirmationBlocks: 12,
		LookbackBlocks:     10,
		BackoffMultiplier:  2,
	}
	sc := scanner.New(cfg.ConfirmationBlocks, cfg.LookbackBlocks)
	return NewDriver(ledger, store, sc, rec, cfg, nil), act
}

func TestDriverCycleCommitsCheckpoint(t *testing.T) {
	ledger := &fakeLedger{
		height: 100,
		logs:   []types.Log{lockedLog(t, 80, 0, "0xaa")},
	}
	store := storage.NewMemoryStorage()
	driver, act := newTestDriver(t, ledger, store)

	require.NoError(t, driver.runCycle(context.Background()))

	// Cold start: from = 100 - 12 - 10, to = 100 - 12.
	require.Len(t, ledger.fetches, 1)
	assert.Equal(t, fetchCall{78, 88}, ledger.fetches[0])

	cp, ok, err := store.GetCheckpoint(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(88), cp)

	assert.Len(t, act.dispatched, 1)

	stats := driver.Stats()
	assert.Equal(t, uint64(1), stats.RangesScanned)
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(88), stats.LastTo)
}

func TestDriverResumesFromCheckpoint(t *testing.T) {
	ledger := &fakeLedger{height: 110}
	store := storage.NewMemoryStorage()
	require.NoError(t, store.SetCheckpoint(context.Background(), 88))
	driver, _ := newTestDriver(t, ledger, store)

	require.NoError(t, driver.runCycle(context.Background()))

	require.Len(t, ledger.fetches, 1)
	assert.Equal(t, fetchCall{89, 98}, ledger.fetches[0])
}

func TestDriverNothingToScan(t *testing.T) {
	// Checkpoint already at the confirmed tip.
	ledger := &fakeLedger{height: 100}
	store := storage.NewMemoryStorage()
	require.NoError(t, store.SetCheckpoint(context.Background(), 88))
	driver, _ := newTestDriver(t, ledger, store)

	require.NoError(t, driver.runCycle(context.Background()))

	assert.Empty(t, ledger.fetches)
	cp, _, err := store.GetCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(88), cp, "checkpoint must not move without a scan")
	assert.Equal(t, StateIdle, driver.State())
}

func TestDriverRangeUnavailableNoCommit(t *testing.T) {
	ledger := &fakeLedger{
		height:   100,
		fetchErr: utils.NewAppError(utils.ErrCodeRangeUnavailable, "Block range not available"),
	}
	store := storage.NewMemoryStorage()
	driver, _ := newTestDriver(t, ledger, store)

	// A reorg gap is not an error: the cycle ends quietly and the same range
	// is retried after the next poll.
	require.NoError(t, driver.runCycle(context.Background()))

	_, ok, err := store.GetCheckpoint(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "checkpoint must not advance past an unavailable range")
	assert.Equal(t, StateIdle, driver.State())
}

func TestDriverConnectionErrorAbandonsCycle(t *testing.T) {
	ledger := &fakeLedger{
		height:    100,
		heightErr: utils.NewAppError(utils.ErrCodeConnection, "Node unreachable"),
	}
	store := storage.NewMemoryStorage()
	driver, _ := newTestDriver(t, ledger, store)

	err := driver.runCycle(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsConnectionError(err))

	_, ok, cpErr := store.GetCheckpoint(context.Background())
	require.NoError(t, cpErr)
	assert.False(t, ok)
}

func TestDriverReconnectsAfterConnectionError(t *testing.T) {
	ledger := &fakeLedger{
		height:    100,
		heightErr: utils.NewAppError(utils.ErrCodeConnection, "Node unreachable"),
	}
	store := storage.NewMemoryStorage()
	driver, _ := newTestDriver(t, ledger, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	require.Eventually(t, func() bool {
		return ledger.reconnectCount() > 0
	}, 2*time.Second, 5*time.Millisecond, "driver should attempt a reconnect")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after cancellation")
	}
	assert.Equal(t, StateStopped, driver.State())

	stats := driver.Stats()
	assert.Greater(t, stats.Backoffs, uint64(0))
	require.NotNil(t, stats.LastError)
}

func TestDriverConnectionErrorMetric(t *testing.T) {
	ledger := &fakeLedger{
		height:    100,
		heightErr: utils.NewAppError(utils.ErrCodeConnection, "Node unreachable"),
	}
	store := storage.NewMemoryStorage()
	act := &recordingActuator{}
	rec, err := reconciler.New(ledger, store, nil, act, testContract, nil)
	require.NoError(t, err)

	cfg := &config.RelayConfig{
		PollInterval:       10 * time.Millisecond,
		ConfirmationBlocks: 12,
		LookbackBlocks:     10,
		BackoffMultiplier:  2,
	}
	m := metrics.NewMetrics()
	driver := NewDriver(ledger, store, scanner.New(cfg.ConfirmationBlocks, cfg.LookbackBlocks), rec, cfg, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ConnectionErrorsTotal.WithLabelValues("cycle")) >= 1
	}, 2*time.Second, 5*time.Millisecond, "connection errors should be counted")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after cancellation")
	}
}

func TestDriverPanicRecovered(t *testing.T) {
	ledger := &fakeLedger{panics: true}
	store := storage.NewMemoryStorage()
	driver, _ := newTestDriver(t, ledger, store)

	err := driver.runCycle(context.Background())
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeInternal))
}

func TestDriverStopsOnCancelledContext(t *testing.T) {
	ledger := &fakeLedger{height: 100}
	store := storage.NewMemoryStorage()
	driver, _ := newTestDriver(t, ledger, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStopped, driver.State())
}
