// Package storage - Wallet storage operations.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Wallet errors
var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrDuplicateAddress = errors.New("address already registered")
)

// Wallet represents a registered donation wallet. Only public data is
// stored: the address, its derivation path, and balance snapshots.
type Wallet struct {
	ID             string
	Chain          string
	Address        string
	DerivationPath string
	Label          string

	// Latest balance snapshot
	BalanceCrypto     string
	BalanceUSD        float64
	LastBalanceUpdate *time.Time

	IsActive  bool
	CreatedAt time.Time
}

// CreateWallet registers a new donation wallet and returns its generated ID.
func (s *Storage) CreateWallet(w *Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	if w.BalanceCrypto == "" {
		w.BalanceCrypto = "0"
	}

	isActive := 0
	if w.IsActive {
		isActive = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO wallets (
			id, chain, address, derivation_path, label,
			balance_crypto, balance_usd, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.ID, w.Chain, w.Address, w.DerivationPath, w.Label,
		w.BalanceCrypto, w.BalanceUSD, isActive, w.CreatedAt.Unix(),
	)

	if err != nil {
		// Match the address constraint specifically; an id collision is a
		// different failure and must not be reported as a duplicate address.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			sqliteErr.Code == sqlite3.ErrConstraint &&
			strings.Contains(err.Error(), "wallets.address") {
			return fmt.Errorf("%w: %s", ErrDuplicateAddress, w.Address)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetWallet retrieves a wallet by ID.
func (s *Storage) GetWallet(id string) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanWallet(s.db.QueryRow(`
		SELECT id, chain, address, derivation_path, label,
			balance_crypto, balance_usd, last_balance_update,
			is_active, created_at
		FROM wallets WHERE id = ?
	`, id))
}

// GetWalletByAddress retrieves a wallet by its on-chain address.
func (s *Storage) GetWalletByAddress(address string) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanWallet(s.db.QueryRow(`
		SELECT id, chain, address, derivation_path, label,
			balance_crypto, balance_usd, last_balance_update,
			is_active, created_at
		FROM wallets WHERE address = ?
	`, address))
}

// ListWallets returns all wallets, newest first. When activeOnly is true,
// deactivated wallets are skipped.
func (s *Storage) ListWallets(activeOnly bool) ([]*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, chain, address, derivation_path, label,
			balance_crypto, balance_usd, last_balance_update,
			is_active, created_at
		FROM wallets
	`
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*Wallet
	for rows.Next() {
		w, err := s.scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// UpdateWalletBalance records a balance snapshot and its fetch time.
func (s *Storage) UpdateWalletBalance(id, balanceCrypto string, balanceUSD float64) error {
	return s.updateWalletBalanceAt(id, balanceCrypto, balanceUSD, time.Now())
}

func (s *Storage) updateWalletBalanceAt(id, balanceCrypto string, balanceUSD float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE wallets
		SET balance_crypto = ?, balance_usd = ?, last_balance_update = ?
		WHERE id = ?
	`, balanceCrypto, balanceUSD, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	return nil
}

// SetWalletActive toggles whether a wallet is included in balance refreshes.
func (s *Storage) SetWalletActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	isActive := 0
	if active {
		isActive = 1
	}

	result, err := s.db.Exec(`UPDATE wallets SET is_active = ? WHERE id = ?`, isActive, id)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Storage) scanWallet(row scanner) (*Wallet, error) {
	var w Wallet
	var label sql.NullString
	var lastUpdate sql.NullInt64
	var isActive int
	var createdAt int64

	err := row.Scan(
		&w.ID, &w.Chain, &w.Address, &w.DerivationPath, &label,
		&w.BalanceCrypto, &w.BalanceUSD, &lastUpdate,
		&isActive, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	w.Label = label.String
	w.IsActive = isActive != 0
	w.CreatedAt = time.Unix(createdAt, 0)
	if lastUpdate.Valid {
		t := time.Unix(lastUpdate.Int64, 0)
		w.LastBalanceUpdate = &t
	}
	return &w, nil
}
