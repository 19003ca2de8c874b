// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/bridge-relay/internal/models"
)

// Store is the checkpoint and dedup store. It is the single source of truth
// for "already acted": the reconciler marks a key only after the actuator
// call for it returned success, and a marked key is never forgotten. The
// checkpoint is monotonically non-decreasing; SetCheckpoint clamps any
// attempt to move it backwards.
type Store interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Dedup operations
	IsProcessed(ctx context.Context, key models.EventKey) (bool, error)
	MarkProcessed(ctx context.Context, key models.EventKey, blockNumber uint64) error

	// Checkpoint operations. GetCheckpoint returns ok=false on first run.
	GetCheckpoint(ctx context.Context) (uint64, bool, error)
	SetCheckpoint(ctx context.Context, blockNumber uint64) error

	// Failed dispatch bookkeeping for manual replay
	RecordFailedDispatch(ctx context.Context, fd *models.FailedDispatch) error
	GetFailedDispatches(ctx context.Context, limit int) ([]*models.FailedDispatch, error)

	// Statistics
	Stats(ctx context.Context) (*StoreStats, error)
}

// StoreStats provides storage statistics
type StoreStats struct {
	ProcessedEvents  int64      `json:"processed_events"`
	FailedDispatches int64      `json:"failed_dispatches"`
	Checkpoint       uint64     `json:"checkpoint"`
	CheckpointSet    bool       `json:"checkpoint_set"`
	LastMarkedAt     *time.Time `json:"last_marked_at,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}
