// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// SQLiteStorage implements Store using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	// WAL keeps the checkpoint commit atomic under concurrent readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
	}

	s.db = db
	s.logger.Info("SQLite database connected", "path", s.config.ConnectionString)

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}

	for _, migration := range s.migrations {
		s.logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	return nil
}

// IsProcessed checks whether the event key has already been acted upon.
func (s *SQLiteStorage) IsProcessed(ctx context.Context, key models.EventKey) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM processed_events WHERE event_key = ?", key.String()).Scan(&count)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query processed event", err.Error())
	}
	return count > 0, nil
}

// MarkProcessed records the event key as acted upon. Idempotent.
func (s *SQLiteStorage) MarkProcessed(ctx context.Context, key models.EventKey, blockNumber uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_key, tx_hash, log_index, block_number, marked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_key) DO NOTHING`,
		key.String(), key.TxHash, key.LogIndex, blockNumber, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to mark event processed", err.Error())
	}
	return nil
}

// GetCheckpoint returns the committed scan watermark, ok=false on first run.
func (s *SQLiteStorage) GetCheckpoint(ctx context.Context) (uint64, bool, error) {
	var blockNumber uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT block_number FROM checkpoint WHERE id = 1").Scan(&blockNumber)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read checkpoint", err.Error())
	}
	return blockNumber, true, nil
}

// SetCheckpoint commits a new watermark. Regressions are clamped away in SQL
// so the checkpoint can never move backwards.
func (s *SQLiteStorage) SetCheckpoint(ctx context.Context, blockNumber uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, block_number, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			block_number = MAX(checkpoint.block_number, excluded.block_number),
			updated_at = excluded.updated_at`,
		blockNumber, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to set checkpoint", err.Error())
	}
	return nil
}

// RecordFailedDispatch stores a failed actuator dispatch for manual replay.
func (s *SQLiteStorage) RecordFailedDispatch(ctx context.Context, fd *models.FailedDispatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failed_dispatches (event_key, block_number, reason, failed_at)
		VALUES (?, ?, ?, ?)`,
		fd.EventKey, fd.BlockNumber, fd.Reason, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to record failed dispatch", err.Error())
	}
	return nil
}

// GetFailedDispatches returns the most recent failed dispatches.
func (s *SQLiteStorage) GetFailedDispatches(ctx context.Context, limit int) ([]*models.FailedDispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_key, block_number, reason, failed_at
		FROM failed_dispatches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query failed dispatches", err.Error())
	}
	defer rows.Close()

	var result []*models.FailedDispatch
	for rows.Next() {
		fd := &models.FailedDispatch{}
		if err := rows.Scan(&fd.ID, &fd.EventKey, &fd.BlockNumber, &fd.Reason, &fd.FailedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan failed dispatch", err.Error())
		}
		result = append(result, fd)
	}
	return result, rows.Err()
}

// Stats returns storage statistics
func (s *SQLiteStorage) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM processed_events").Scan(&stats.ProcessedEvents); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count processed events", err.Error())
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM failed_dispatches").Scan(&stats.FailedDispatches); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count failed dispatches", err.Error())
	}

	cp, ok, err := s.GetCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	stats.Checkpoint = cp
	stats.CheckpointSet = ok

	var marked sql.NullTime
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(marked_at) FROM processed_events").Scan(&marked); err == nil && marked.Valid {
		stats.LastMarkedAt = &marked.Time
	}

	return stats, nil
}
