// Package db provides SQLite database management for issue history and metadata.
package db

// migrations are applied in order; PRAGMA user_version counts the applied ones.
// Append new steps, never edit released ones.
var migrations = []string{
	// 1: issued receipts and metadata
	`
CREATE TABLE IF NOT EXISTS issued_receipts (
    uuid TEXT PRIMARY KEY,             -- approvedReceiptUuid from the tax service
    inn TEXT NOT NULL,                 -- Taxpayer INN
    name TEXT NOT NULL,                -- First service name
    total TEXT NOT NULL,               -- Decimal total, kept as text
    payment_type TEXT NOT NULL,        -- 'CASH' or 'ACCOUNT'
    operation_time TEXT NOT NULL,      -- RFC3339
    status TEXT NOT NULL DEFAULT 'issued', -- 'issued' or 'cancelled'
    cancel_comment TEXT,
    cancelled_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_issued_receipts_status
    ON issued_receipts(status);

CREATE INDEX IF NOT EXISTS idx_issued_receipts_operation_time
    ON issued_receipts(operation_time);

CREATE TABLE IF NOT EXISTS sync_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`,
	// 2: ledger income account per receipt, reused by the cancellation reversal
	`ALTER TABLE issued_receipts ADD COLUMN income_account TEXT;`,
}

// SchemaVersion is the version Open migrates a database to.
var SchemaVersion = len(migrations)
