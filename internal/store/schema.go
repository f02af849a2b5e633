package store

const entryColumns = "id, remaining, budget, created_at, updated_at, last_fetched_at"

const entriesSchemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
  id TEXT PRIMARY KEY,
  remaining INTEGER NOT NULL CHECK (remaining >= 0),
  budget INTEGER NOT NULL CHECK (budget > 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  last_fetched_at TEXT
);

CREATE TABLE IF NOT EXISTS blobs (
  id TEXT PRIMARY KEY,
  payload BLOB NOT NULL,
  size_bytes INTEGER NOT NULL,
  checksum TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (id) REFERENCES entries(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entries_remaining ON entries(remaining);
`

const auditSchemaSQL = `
CREATE TABLE IF NOT EXISTS fetch_audit (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  entry_id TEXT NOT NULL,
  token_digest TEXT NOT NULL,
  remaining_after INTEGER NOT NULL,
  fetched_at TEXT NOT NULL,
  FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_fetch_audit_entry ON fetch_audit(entry_id, seq);
`
