// Package db is the sqlite persistence layer: runtime settings that
// survive restarts and the cached OUI manufacturer table. Schema is
// managed through migrations, see migrate.go.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/presence.report/internal/config"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &DB{db}, nil
}

// SaveSettings persists the config as the single settings row. The
// whole config is stored as one JSON document; partial updates are
// merged upstream before reaching here.
func (db *DB) SaveSettings(cfg *config.Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO settings (id, body, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`, string(body))
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// LoadSettings returns the persisted config, or nil when none has been
// saved yet.
func (db *DB) LoadSettings() (*config.Config, error) {
	var body string
	err := db.QueryRow("SELECT body FROM settings WHERE id = 1").Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var cfg config.Config
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("persisted settings invalid: %w", err)
	}
	return &cfg, nil
}

// Manufacturer looks up an OUI prefix in the cached vendor table.
func (db *DB) Manufacturer(ctx context.Context, prefix string) (string, bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT manufacturer FROM oui WHERE prefix = ?", prefix).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// PutManufacturer stores or refreshes one OUI prefix.
func (db *DB) PutManufacturer(ctx context.Context, prefix, manufacturer string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO oui (prefix, manufacturer, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(prefix) DO UPDATE SET manufacturer = excluded.manufacturer, updated_at = CURRENT_TIMESTAMP
	`, prefix, manufacturer)
	return err
}

// OUIEntry is one row of the vendor table, used by the bulk importer.
type OUIEntry struct {
	Prefix       string
	Manufacturer string
}

// ImportOUI loads entries into the vendor table inside one transaction
// and returns how many rows were written. Existing prefixes are
// overwritten; the registry CSV is authoritative.
func (db *DB) ImportOUI(ctx context.Context, entries []OUIEntry) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO oui (prefix, manufacturer, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(prefix) DO UPDATE SET manufacturer = excluded.manufacturer, updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, e := range entries {
		if e.Prefix == "" || e.Manufacturer == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, e.Prefix, e.Manufacturer); err != nil {
			return 0, fmt.Errorf("importing %s: %w", e.Prefix, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// OUICount returns the number of cached vendor prefixes.
func (db *DB) OUICount(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM oui").Scan(&n)
	return n, err
}
