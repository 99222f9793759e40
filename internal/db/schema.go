package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'technician' CHECK (role IN ('admin', 'manager', 'technician')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS locations (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('warehouse', 'vehicle')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS equipment_models (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL,
    manufacturer   TEXT,
    serial_tracked INTEGER NOT NULL DEFAULT 1 CHECK (serial_tracked IN (0, 1)),
    photo          BLOB,
    photo_mime     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at     DATETIME
);

CREATE TABLE IF NOT EXISTS sites (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    address    TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tickets (
    id         INTEGER PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    site_id    INTEGER REFERENCES sites(id),
    status     TEXT NOT NULL DEFAULT 'open',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assets (
    id          TEXT PRIMARY KEY,
    model_id    INTEGER NOT NULL REFERENCES equipment_models(id),
    serial_no   TEXT NOT NULL CHECK (serial_no <> ''),
    status      TEXT NOT NULL CHECK (status IN ('in_stock', 'reserved', 'deployed', 'defective', 'returned', 'scrapped')),
    location_id INTEGER REFERENCES locations(id),
    ticket_id   INTEGER REFERENCES tickets(id),
    site_id     INTEGER REFERENCES sites(id),
    notes       TEXT,
    received_at DATETIME NOT NULL,
    received_by TEXT NOT NULL,
    updated_at  DATETIME NOT NULL,
    version     INTEGER NOT NULL DEFAULT 1,
    CHECK (status <> 'deployed' OR (location_id IS NULL AND ticket_id IS NOT NULL)),
    CHECK (status NOT IN ('in_stock', 'returned') OR (ticket_id IS NULL AND site_id IS NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_model_serial
    ON assets(model_id, serial_no);
CREATE INDEX IF NOT EXISTS idx_assets_location ON assets(location_id);
CREATE INDEX IF NOT EXISTS idx_assets_ticket ON assets(ticket_id);
CREATE INDEX IF NOT EXISTS idx_assets_received ON assets(received_at);

CREATE TABLE IF NOT EXISTS movements (
    id               TEXT PRIMARY KEY,
    asset_id         TEXT NOT NULL REFERENCES assets(id),
    seq              INTEGER NOT NULL,
    movement_type    TEXT NOT NULL CHECK (movement_type IN ('receive', 'transfer', 'reserve', 'unreserve', 'deploy', 'return', 'defective', 'repair', 'scrap', 'adjust')),
    from_location_id INTEGER REFERENCES locations(id),
    to_location_id   INTEGER REFERENCES locations(id),
    from_status      TEXT,
    to_status        TEXT NOT NULL,
    ticket_id        INTEGER REFERENCES tickets(id),
    performed_by     TEXT NOT NULL,
    performed_at     DATETIME NOT NULL,
    notes            TEXT,
    UNIQUE (asset_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_movements_ticket ON movements(ticket_id);

CREATE TRIGGER IF NOT EXISTS movements_no_update
    BEFORE UPDATE ON movements
BEGIN
    SELECT RAISE(ABORT, 'movements are append-only');
END;

CREATE TRIGGER IF NOT EXISTS movements_no_delete
    BEFORE DELETE ON movements
BEGIN
    SELECT RAISE(ABORT, 'movements are append-only');
END;
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: tickets are looked up by site when deploying without an
	// explicit site.
	`CREATE INDEX IF NOT EXISTS idx_tickets_site ON tickets(site_id)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
