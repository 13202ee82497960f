// Package storage - Transaction cache operations.
//
// Cached entries carry a status-dependent TTL: confirmed transactions are
// immutable on-chain and live for 30 days, while pending and failed ones can
// still change and expire after 5 minutes so the next read refetches them.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transaction cache errors
var (
	ErrCacheMiss = errors.New("no cached transactions")
)

// TxStatus represents the lifecycle state of a cached transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "PENDING"
	TxStatusConfirmed TxStatus = "CONFIRMED"
	TxStatusFailed    TxStatus = "FAILED"
)

// Cache TTLs by status.
const (
	ConfirmedTTL = 30 * 24 * time.Hour
	PendingTTL   = 5 * time.Minute
)

// CachedTx is one cached transaction for a wallet.
type CachedTx struct {
	WalletID string
	TxHash   string
	Chain    string

	FromAddress string
	ToAddress   string

	// Amount in display units as decimal text
	AmountCrypto string
	AmountUSD    float64

	Confirmations int64
	BlockNumber   *int64
	TransactedAt  time.Time
	Status        TxStatus
}

// ttlFor returns the cache lifetime for a transaction status.
func ttlFor(status TxStatus) time.Duration {
	if status == TxStatusConfirmed {
		return ConfirmedTTL
	}
	return PendingTTL
}

// UpsertTransactions writes a batch of transactions for a wallet. Existing
// rows are updated in place, so a transaction that confirms between fetches
// picks up the longer TTL.
func (s *Storage) UpsertTransactions(walletID string, txs []*CachedTx) error {
	return s.upsertTransactionsAt(walletID, txs, time.Now())
}

func (s *Storage) upsertTransactionsAt(walletID string, txs []*CachedTx, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO transaction_cache (
			wallet_id, tx_hash, chain, from_address, to_address,
			amount_crypto, amount_usd, confirmations, block_number,
			transacted_at, status, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_id, tx_hash) DO UPDATE SET
			confirmations = excluded.confirmations,
			block_number = excluded.block_number,
			amount_usd = excluded.amount_usd,
			status = excluded.status,
			expires_at = excluded.expires_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		expiresAt := now.Add(ttlFor(t.Status)).Unix()

		var blockNumber *int64
		if t.BlockNumber != nil {
			blockNumber = t.BlockNumber
		}

		_, err := stmt.Exec(
			walletID, t.TxHash, t.Chain, t.FromAddress, t.ToAddress,
			t.AmountCrypto, t.AmountUSD, t.Confirmations, blockNumber,
			t.TransactedAt.Unix(), string(t.Status), expiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert transaction %s: %w", t.TxHash, err)
		}
	}

	return tx.Commit()
}

// ReadTransactions returns unexpired cached transactions for a wallet,
// newest first. Returns ErrCacheMiss when nothing unexpired is cached.
func (s *Storage) ReadTransactions(walletID string, limit int) ([]*CachedTx, error) {
	return s.readTransactionsAt(walletID, limit, time.Now())
}

func (s *Storage) readTransactionsAt(walletID string, limit int, now time.Time) ([]*CachedTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := s.queryTransactions(`
		SELECT wallet_id, tx_hash, chain, from_address, to_address,
			amount_crypto, amount_usd, confirmations, block_number,
			transacted_at, status
		FROM transaction_cache
		WHERE wallet_id = ? AND expires_at > ?
		ORDER BY transacted_at DESC
		LIMIT ?
	`, walletID, now.Unix(), limit)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrCacheMiss
	}
	return txs, nil
}

// ReadTransactionsStale returns cached transactions regardless of expiry.
// Used to serve something when a live fetch fails after a cache miss.
func (s *Storage) ReadTransactionsStale(walletID string, limit int) ([]*CachedTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := s.queryTransactions(`
		SELECT wallet_id, tx_hash, chain, from_address, to_address,
			amount_crypto, amount_usd, confirmations, block_number,
			transacted_at, status
		FROM transaction_cache
		WHERE wallet_id = ?
		ORDER BY transacted_at DESC
		LIMIT ?
	`, walletID, limit)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrCacheMiss
	}
	return txs, nil
}

// SweepExpired deletes expired cache rows and reports how many were removed.
func (s *Storage) SweepExpired() (int64, error) {
	return s.sweepExpiredAt(time.Now())
}

func (s *Storage) sweepExpiredAt(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM transaction_cache WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache: %w", err)
	}
	return result.RowsAffected()
}

func (s *Storage) queryTransactions(query string, args ...interface{}) ([]*CachedTx, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*CachedTx
	for rows.Next() {
		var t CachedTx
		var fromAddr, toAddr sql.NullString
		var blockNumber sql.NullInt64
		var transactedAt int64
		var status string

		err := rows.Scan(
			&t.WalletID, &t.TxHash, &t.Chain, &fromAddr, &toAddr,
			&t.AmountCrypto, &t.AmountUSD, &t.Confirmations, &blockNumber,
			&transactedAt, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		t.FromAddress = fromAddr.String
		t.ToAddress = toAddr.String
		if blockNumber.Valid {
			n := blockNumber.Int64
			t.BlockNumber = &n
		}
		t.TransactedAt = time.Unix(transactedAt, 0)
		t.Status = TxStatus(status)
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}
