package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create processed_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS processed_events (
					event_key TEXT PRIMARY KEY,
					tx_hash TEXT NOT NULL,
					log_index INTEGER NOT NULL,
					block_number INTEGER NOT NULL,
					marked_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_processed_events_block ON processed_events(block_number);
			`,
		},
		{
			Version:     "002",
			Description: "Create checkpoint table",
			SQL: `
				CREATE TABLE IF NOT EXISTS checkpoint (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					block_number INTEGER NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version:     "003",
			Description: "Create failed_dispatches table",
			SQL: `
				CREATE TABLE IF NOT EXISTS failed_dispatches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					event_key TEXT NOT NULL,
					block_number INTEGER NOT NULL,
					reason TEXT NOT NULL,
					failed_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_failed_dispatches_key ON failed_dispatches(event_key);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create processed_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS processed_events (
					event_key TEXT PRIMARY KEY,
					tx_hash TEXT NOT NULL,
					log_index INTEGER NOT NULL,
					block_number BIGINT NOT NULL,
					marked_at TIMESTAMPTZ DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_processed_events_block ON processed_events(block_number);
			`,
		},
		{
			Version:     "002",
			Description: "Create checkpoint table",
			SQL: `
				CREATE TABLE IF NOT EXISTS checkpoint (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					block_number BIGINT NOT NULL,
					updated_at TIMESTAMPTZ DEFAULT NOW()
				);
			`,
		},
		{
			Version:     "003",
			Description: "Create failed_dispatches table",
			SQL: `
				CREATE TABLE IF NOT EXISTS failed_dispatches (
					id BIGSERIAL PRIMARY KEY,
					event_key TEXT NOT NULL,
					block_number BIGINT NOT NULL,
					reason TEXT NOT NULL,
					failed_at TIMESTAMPTZ DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_failed_dispatches_key ON failed_dispatches(event_key);
			`,
		},
	}
}
