package sqlite

var schema = []string{
	`CREATE TABLE IF NOT EXISTS import_batches (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name   TEXT NOT NULL,
		imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		raw_text   TEXT NOT NULL,
		driver_tag TEXT,
		manual_tag TEXT,
		status     TEXT NOT NULL DEFAULT 'pending',
		batch_id   INTEGER REFERENCES import_batches(id),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		category   TEXT NOT NULL DEFAULT '',
		definition TEXT NOT NULL DEFAULT ''
	)`,
}
