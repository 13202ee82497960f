// Package storage provides persistent storage using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides persistent storage for the donation daemon. It holds
// wallet metadata and cached transaction history only; no mnemonic or key
// material is ever written here.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "donations.db")

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	// Initialize schema
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Registered donation wallets (public data only: address, path, label)
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		chain TEXT NOT NULL,
		address TEXT NOT NULL UNIQUE,
		derivation_path TEXT NOT NULL,
		label TEXT,

		-- Latest balance snapshot
		balance_crypto TEXT NOT NULL DEFAULT '0',
		balance_usd REAL NOT NULL DEFAULT 0,
		last_balance_update INTEGER,

		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallets_chain ON wallets(chain);
	CREATE INDEX IF NOT EXISTS idx_wallets_active ON wallets(is_active);

	-- Cached transaction history per wallet with status-dependent TTL
	CREATE TABLE IF NOT EXISTS transaction_cache (
		wallet_id TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		chain TEXT NOT NULL,

		from_address TEXT,
		to_address TEXT,

		-- Amount in display units, stored as decimal text to avoid float drift
		amount_crypto TEXT NOT NULL,
		amount_usd REAL NOT NULL DEFAULT 0,

		confirmations INTEGER NOT NULL DEFAULT 0,
		block_number INTEGER,
		transacted_at INTEGER NOT NULL,

		-- PENDING, CONFIRMED, FAILED
		status TEXT NOT NULL,

		expires_at INTEGER NOT NULL,

		PRIMARY KEY (wallet_id, tx_hash),
		FOREIGN KEY (wallet_id) REFERENCES wallets(id)
	);

	CREATE INDEX IF NOT EXISTS idx_txcache_wallet ON transaction_cache(wallet_id, transacted_at);
	CREATE INDEX IF NOT EXISTS idx_txcache_expires ON transaction_cache(expires_at);

	-- Settings/config table
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SetSetting stores a key/value pair in the settings table.
func (s *Storage) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	return err
}

// GetSetting returns the value for a settings key, or "" if unset.
func (s *Storage) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
