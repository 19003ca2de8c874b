package connection

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// Manager defines the source ledger client interface. It is the only path to
// the chain: height queries and log fetches, both bounded by the configured
// request timeout so a hung node cannot stall the poll loop.
type Manager interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, contract common.Address, eventSig common.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
	Stats() ConnectionStats
}

// ConnectionManager implements the Manager interface
type ConnectionManager struct {
	config          *config.BridgeConfig
	primaryURL      string
	backupURLs      []string
	currentIndex    int
	client          *ethclient.Client
	mu              sync.RWMutex
	logger          *logrus.Logger
	stats           ConnectionStats
	lastHealthCheck time.Time
	isHealthy       bool
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	TotalRequests   uint64    `json:"total_requests"`
	FailedRequests  uint64    `json:"failed_requests"`
	Reconnects      uint64    `json:"reconnects"`
	CurrentURL      string    `json:"current_url"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	IsHealthy       bool      `json:"is_healthy"`
	LatestBlock     uint64    `json:"latest_block"`
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(cfg *config.BridgeConfig) *ConnectionManager {
	return &ConnectionManager{
		config:       cfg,
		primaryURL:   cfg.SourceNodeURL,
		backupURLs:   cfg.SourceBackupNodes,
		currentIndex: 0,
		logger:       utils.GetLogger(),
		stats: ConnectionStats{
			CurrentURL: cfg.SourceNodeURL,
		},
	}
}

// getClient returns the current client, dialing if necessary.
func (cm *ConnectionManager) getClient(ctx context.Context) (*ethclient.Client, error) {
	cm.mu.RLock()
	client := cm.client
	cm.mu.RUnlock()

	if client == nil {
		return cm.connect(ctx)
	}

	cm.mu.Lock()
	cm.stats.TotalRequests++
	cm.mu.Unlock()
	return client, nil
}

// connect establishes a new connection, rotating through backup nodes.
func (cm *ConnectionManager) connect(ctx context.Context) (*ethclient.Client, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	urls := cm.getAllURLs()

	for attempt := 0; attempt < cm.config.RetryAttempts; attempt++ {
		for i, url := range urls {
			cm.logger.Info("Attempting connection", "url", url, "attempt", attempt+1)

			client, err := cm.dialWithTimeout(ctx, url)
			if err != nil {
				cm.logger.Warn("Connection failed", "url", url, "error", err)
				cm.stats.FailedRequests++
				continue
			}

			if err := cm.quickHealthCheck(ctx, client); err != nil {
				client.Close()
				cm.logger.Warn("Health check failed after connection", "url", url, "error", err)
				continue
			}

			cm.client = client
			cm.currentIndex = i
			cm.stats.CurrentURL = url
			cm.stats.LastConnectedAt = time.Now()
			cm.stats.IsHealthy = true
			cm.isHealthy = true
			cm.lastHealthCheck = time.Now()

			cm.logger.Info("Connected to source chain node", "url", url)
			return client, nil
		}

		if attempt < cm.config.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cm.config.RetryDelay):
			}
		}
	}

	return nil, utils.NewAppError(utils.ErrCodeConnection, "Failed to connect to any source chain node",
		"All connection attempts exhausted")
}

// Reconnect drops the current connection and dials again.
func (cm *ConnectionManager) Reconnect(ctx context.Context) error {
	cm.mu.Lock()
	if cm.client != nil {
		cm.client.Close()
		cm.client = nil
	}
	cm.stats.Reconnects++
	cm.isHealthy = false
	cm.mu.Unlock()

	_, err := cm.connect(ctx)
	return err
}

// dialWithTimeout creates a connection with timeout
func (cm *ConnectionManager) dialWithTimeout(ctx context.Context, url string) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cm.config.RequestTimeout)
	defer cancel()

	return ethclient.DialContext(dialCtx, url)
}

// quickHealthCheck performs a quick health check
func (cm *ConnectionManager) quickHealthCheck(ctx context.Context, client *ethclient.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, cm.config.RequestTimeout)
	defer cancel()

	_, err := client.BlockNumber(checkCtx)
	return err
}

// CurrentHeight returns the latest block number reported by the node.
func (cm *ConnectionManager) CurrentHeight(ctx context.Context) (uint64, error) {
	client, err := cm.getClient(ctx)
	if err != nil {
		return 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, cm.config.RequestTimeout)
	defer cancel()

	blockNumber, err := client.BlockNumber(callCtx)
	if err != nil {
		cm.recordFailure()
		return 0, utils.NewAppError(utils.ErrCodeConnection, "Failed to get chain height", err.Error())
	}

	cm.mu.Lock()
	cm.stats.LatestBlock = blockNumber
	cm.mu.Unlock()

	return blockNumber, nil
}

// FetchLogs fetches event logs for the contract and signature over the given
// block range. A range the node cannot serve, which happens when a reorg
// replaced the queried blocks, is reported as RANGE_UNAVAILABLE rather than a
// connection failure.
func (cm *ConnectionManager) FetchLogs(ctx context.Context, contract common.Address, eventSig common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	client, err := cm.getClient(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, cm.config.RequestTimeout)
	defer cancel()

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{eventSig}},
	}

	logs, err := client.FilterLogs(callCtx, query)
	if err != nil {
		cm.recordFailure()
		if isRangeError(err) {
			return nil, utils.NewAppError(utils.ErrCodeRangeUnavailable, "Block range not available", err.Error())
		}
		return nil, utils.NewAppError(utils.ErrCodeConnection, "Failed to fetch logs", err.Error())
	}

	return logs, nil
}

// isRangeError recognizes node responses for block ranges that no longer
// exist on the canonical chain.
func isRangeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "unknown block") ||
		strings.Contains(msg, "invalid block range") ||
		strings.Contains(msg, "header not found")
}

// IsConnected returns whether the manager is connected
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.client != nil && cm.isHealthy
}

// Close closes the connection
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.client != nil {
		cm.client.Close()
		cm.client = nil
	}

	cm.isHealthy = false
	cm.logger.Info("Connection manager closed")
	return nil
}

// Stats returns connection statistics
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.stats
}

func (cm *ConnectionManager) recordFailure() {
	cm.mu.Lock()
	cm.stats.FailedRequests++
	cm.mu.Unlock()
}

// getAllURLs returns all available URLs starting from current index
func (cm *ConnectionManager) getAllURLs() []string {
	urls := []string{cm.primaryURL}
	urls = append(urls, cm.backupURLs...)

	if cm.currentIndex > 0 && cm.currentIndex < len(urls) {
		rotated := make([]string, len(urls))
		copy(rotated, urls[cm.currentIndex:])
		copy(rotated[len(urls)-cm.currentIndex:], urls[:cm.currentIndex])
		return rotated
	}

	return urls
}
