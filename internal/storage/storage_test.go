package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/models"
)

// storeUnderTest runs the same contract checks against every Store
// implementation.
func storeUnderTest(t *testing.T, name string, newStore func(t *testing.T) Store) {
	t.Run(name, func(t *testing.T) {
		ctx := context.Background()

		t.Run("Dedup", func(t *testing.T) {
			store := newStore(t)
			key := models.EventKey{TxHash: "0xabc", LogIndex: 3}

			processed, err := store.IsProcessed(ctx, key)
			require.NoError(t, err)
			assert.False(t, processed)

			require.NoError(t, store.MarkProcessed(ctx, key, 42))
			// Marking twice must be an idempotent no-op.
			require.NoError(t, store.MarkProcessed(ctx, key, 42))

			processed, err = store.IsProcessed(ctx, key)
			require.NoError(t, err)
			assert.True(t, processed)

			other, err := store.IsProcessed(ctx, models.EventKey{TxHash: "0xabc", LogIndex: 4})
			require.NoError(t, err)
			assert.False(t, other, "log index is part of the event identity")
		})

		t.Run("Checkpoint", func(t *testing.T) {
			store := newStore(t)

			_, ok, err := store.GetCheckpoint(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "checkpoint must be unset on first run")

			require.NoError(t, store.SetCheckpoint(ctx, 88))
			cp, ok, err := store.GetCheckpoint(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, uint64(88), cp)

			// Regressions are clamped, never applied.
			require.NoError(t, store.SetCheckpoint(ctx, 50))
			cp, _, err = store.GetCheckpoint(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(88), cp)

			require.NoError(t, store.SetCheckpoint(ctx, 120))
			cp, _, err = store.GetCheckpoint(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(120), cp)
		})

		t.Run("FailedDispatches", func(t *testing.T) {
			store := newStore(t)

			require.NoError(t, store.RecordFailedDispatch(ctx, &models.FailedDispatch{
				EventKey:    "0xdead-0",
				BlockNumber: 90,
				Reason:      "relayer rejected nonce",
			}))
			require.NoError(t, store.RecordFailedDispatch(ctx, &models.FailedDispatch{
				EventKey:    "0xbeef-1",
				BlockNumber: 91,
				Reason:      "relayer unreachable",
			}))

			failed, err := store.GetFailedDispatches(ctx, 10)
			require.NoError(t, err)
			require.Len(t, failed, 2)
			assert.Equal(t, "0xbeef-1", failed[0].EventKey, "newest first")

			limited, err := store.GetFailedDispatches(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})

		t.Run("Stats", func(t *testing.T) {
			store := newStore(t)

			require.NoError(t, store.MarkProcessed(ctx, models.EventKey{TxHash: "0x1", LogIndex: 0}, 10))
			require.NoError(t, store.SetCheckpoint(ctx, 10))

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), stats.ProcessedEvents)
			assert.True(t, stats.CheckpointSet)
			assert.Equal(t, uint64(10), stats.Checkpoint)
		})
	})
}

func TestMemoryStorage(t *testing.T) {
	storeUnderTest(t, "memory", func(t *testing.T) Store {
		return NewMemoryStorage()
	})
}

func TestSQLiteStorage(t *testing.T) {
	storeUnderTest(t, "sqlite", func(t *testing.T) Store {
		store := NewSQLiteStorage(&StorageConfig{
			Type:             "sqlite",
			ConnectionString: filepath.Join(t.TempDir(), "relay_test.db"),
			MaxConnections:   4,
			MaxIdleTime:      time.Minute,
		})
		require.NoError(t, store.Connect())
		require.NoError(t, store.Migrate())
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteCheckpointSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "relay_restart.db")
	cfg := &StorageConfig{ConnectionString: path, MaxConnections: 4, MaxIdleTime: time.Minute}

	store := NewSQLiteStorage(cfg)
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	require.NoError(t, store.SetCheckpoint(ctx, 88))
	require.NoError(t, store.MarkProcessed(ctx, models.EventKey{TxHash: "0xaa", LogIndex: 1}, 80))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStorage(cfg)
	require.NoError(t, reopened.Connect())
	require.NoError(t, reopened.Migrate())
	defer reopened.Close()

	cp, ok, err := reopened.GetCheckpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(88), cp)

	processed, err := reopened.IsProcessed(ctx, models.EventKey{TxHash: "0xaa", LogIndex: 1})
	require.NoError(t, err)
	assert.True(t, processed, "restart must not re-act on already-acted events")
}

func TestNewStoreFactory(t *testing.T) {
	_, err := NewStore(&config.StorageConfig{Type: "bogus"})
	assert.Error(t, err)

	store, err := NewStore(&config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, store)
}
