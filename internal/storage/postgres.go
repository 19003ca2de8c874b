// File: internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// PostgreSQLStorage implements Store using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}

	for _, migration := range p.migrations {
		p.logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)

		if _, err := p.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	return nil
}

// IsProcessed checks whether the event key has already been acted upon.
func (p *PostgreSQLStorage) IsProcessed(ctx context.Context, key models.EventKey) (bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM processed_events WHERE event_key = $1", key.String()).Scan(&count)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query processed event", err.Error())
	}
	return count > 0, nil
}

// MarkProcessed records the event key as acted upon. Idempotent.
func (p *PostgreSQLStorage) MarkProcessed(ctx context.Context, key models.EventKey, blockNumber uint64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_key, tx_hash, log_index, block_number, marked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_key) DO NOTHING`,
		key.String(), key.TxHash, key.LogIndex, blockNumber, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to mark event processed", err.Error())
	}
	return nil
}

// GetCheckpoint returns the committed scan watermark, ok=false on first run.
func (p *PostgreSQLStorage) GetCheckpoint(ctx context.Context) (uint64, bool, error) {
	var blockNumber uint64
	err := p.db.QueryRowContext(ctx,
		"SELECT block_number FROM checkpoint WHERE id = 1").Scan(&blockNumber)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read checkpoint", err.Error())
	}
	return blockNumber, true, nil
}

// SetCheckpoint commits a new watermark, clamping regressions.
func (p *PostgreSQLStorage) SetCheckpoint(ctx context.Context, blockNumber uint64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, block_number, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			block_number = GREATEST(checkpoint.block_number, EXCLUDED.block_number),
			updated_at = EXCLUDED.updated_at`,
		blockNumber, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to set checkpoint", err.Error())
	}
	return nil
}

// RecordFailedDispatch stores a failed actuator dispatch for manual replay.
func (p *PostgreSQLStorage) RecordFailedDispatch(ctx context.Context, fd *models.FailedDispatch) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO failed_dispatches (event_key, block_number, reason, failed_at)
		VALUES ($1, $2, $3, $4)`,
		fd.EventKey, fd.BlockNumber, fd.Reason, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to record failed dispatch", err.Error())
	}
	return nil
}

// GetFailedDispatches returns the most recent failed dispatches.
func (p *PostgreSQLStorage) GetFailedDispatches(ctx context.Context, limit int) ([]*models.FailedDispatch, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, event_key, block_number, reason, failed_at
		FROM failed_dispatches ORDER BY id DESC LIMIT $1`, limit)
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
func (p *PostgreSQLStorage) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	if err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM processed_events").Scan(&stats.ProcessedEvents); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count processed events", err.Error())
	}
	if err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM failed_dispatches").Scan(&stats.FailedDispatches); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count failed dispatches", err.Error())
	}

	cp, ok, err := p.GetCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	stats.Checkpoint = cp
	stats.CheckpointSet = ok

	var marked sql.NullTime
	if err := p.db.QueryRowContext(ctx,
		"SELECT MAX(marked_at) FROM processed_events").Scan(&marked); err == nil && marked.Valid {
		stats.LastMarkedAt = &marked.Time
	}

	return stats, nil
}
