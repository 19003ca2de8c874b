// File: internal/storage/memory.go
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/smartdevs17/bridge-relay/internal/models"
)

// MemoryStorage implements Store in memory. State is lost on restart, so it
// is only suitable for tests and throwaway runs.
type MemoryStorage struct {
	mu            sync.RWMutex
	processed     map[string]time.Time
	checkpoint    uint64
	checkpointSet bool
	failed        []*models.FailedDispatch
	nextFailedID  int64
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		processed:    make(map[string]time.Time),
		nextFailedID: 1,
	}
}

func (m *MemoryStorage) Connect() error { return nil }
func (m *MemoryStorage) Close() error   { return nil }
func (m *MemoryStorage) Ping() error    { return nil }
func (m *MemoryStorage) Migrate() error { return nil }

// IsProcessed checks whether the event key has already been acted upon.
func (m *MemoryStorage) IsProcessed(ctx context.Context, key models.EventKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[key.String()]
	return ok, nil
}

// MarkProcessed records the event key as acted upon. Idempotent.
func (m *MemoryStorage) MarkProcessed(ctx context.Context, key models.EventKey, blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[key.String()]; !ok {
		m.processed[key.String()] = time.Now()
	}
	return nil
}

// GetCheckpoint returns the committed scan watermark, ok=false on first run.
func (m *MemoryStorage) GetCheckpoint(ctx context.Context) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoint, m.checkpointSet, nil
}

// SetCheckpoint commits a new watermark, clamping regressions.
func (m *MemoryStorage) SetCheckpoint(ctx context.Context, blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.checkpointSet || blockNumber > m.checkpoint {
		m.checkpoint = blockNumber
	}
	m.checkpointSet = true
	return nil
}

// RecordFailedDispatch stores a failed actuator dispatch for manual replay.
func (m *MemoryStorage) RecordFailedDispatch(ctx context.Context, fd *models.FailedDispatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := *fd
	rec.ID = m.nextFailedID
	rec.FailedAt = time.Now()
	m.nextFailedID++
	m.failed = append(m.failed, &rec)
	return nil
}

// GetFailedDispatches returns the most recent failed dispatches.
func (m *MemoryStorage) GetFailedDispatches(ctx context.Context, limit int) ([]*models.FailedDispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.FailedDispatch
	for i := len(m.failed) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.failed[i])
	}
	return result, nil
}

// Stats returns storage statistics
func (m *MemoryStorage) Stats(ctx context.Context) (*StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &StoreStats{
		ProcessedEvents:  int64(len(m.processed)),
		FailedDispatches: int64(len(m.failed)),
		Checkpoint:       m.checkpoint,
		CheckpointSet:    m.checkpointSet,
	}

	var last time.Time
	for _, at := range m.processed {
		if at.After(last) {
			last = at
		}
	}
	if !last.IsZero() {
		stats.LastMarkedAt = &last
	}

	return stats, nil
}
