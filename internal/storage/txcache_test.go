package storage

import (
	"errors"
	"testing"
	"time"
)

func cachedTx(walletID, hash string, status TxStatus, transactedAt time.Time) *CachedTx {
	return &CachedTx{
		WalletID:     walletID,
		TxHash:       hash,
		Chain:        "BTC",
		ToAddress:    "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		AmountCrypto: "100000",
		AmountUSD:    90.25,
		Status:       status,
		TransactedAt: transactedAt,
	}
}

func seedWallet(t *testing.T, s *Storage) *Wallet {
	t.Helper()
	w := testWallet("BTC", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	if err := s.CreateWallet(w); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	return w
}

func TestUpsertAndReadTransactions(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)
	now := time.Now()

	txs := []*CachedTx{
		cachedTx(w.ID, "aa01", TxStatusConfirmed, now.Add(-2*time.Hour)),
		cachedTx(w.ID, "aa02", TxStatusConfirmed, now.Add(-1*time.Hour)),
		cachedTx(w.ID, "aa03", TxStatusPending, now),
	}
	if err := s.UpsertTransactions(w.ID, txs); err != nil {
		t.Fatalf("UpsertTransactions: %v", err)
	}

	got, err := s.ReadTransactions(w.ID, 50)
	if err != nil {
		t.Fatalf("ReadTransactions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d transactions, want 3", len(got))
	}

	// Newest first.
	if got[0].TxHash != "aa03" || got[2].TxHash != "aa01" {
		t.Errorf("wrong ordering: %s, %s, %s", got[0].TxHash, got[1].TxHash, got[2].TxHash)
	}
}

func TestReadTransactionsCacheMiss(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)

	if _, err := s.ReadTransactions(w.ID, 50); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestConfirmedTransactionTTL(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)
	written := time.Now()

	tx := cachedTx(w.ID, "bb01", TxStatusConfirmed, written)
	if err := s.upsertTransactionsAt(w.ID, []*CachedTx{tx}, written); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Still cached after 29 days.
	if _, err := s.readTransactionsAt(w.ID, 50, written.Add(29*24*time.Hour)); err != nil {
		t.Fatalf("read at T+29d: %v", err)
	}

	// Expired after 31 days.
	if _, err := s.readTransactionsAt(w.ID, 50, written.Add(31*24*time.Hour)); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("read at T+31d: expected ErrCacheMiss, got %v", err)
	}
}

func TestPendingTransactionTTL(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)
	written := time.Now()

	tx := cachedTx(w.ID, "cc01", TxStatusPending, written)
	if err := s.upsertTransactionsAt(w.ID, []*CachedTx{tx}, written); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := s.readTransactionsAt(w.ID, 50, written.Add(4*time.Minute)); err != nil {
		t.Fatalf("read at T+4m: %v", err)
	}
	if _, err := s.readTransactionsAt(w.ID, 50, written.Add(6*time.Minute)); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("read at T+6m: expected ErrCacheMiss, got %v", err)
	}
}

func TestUpsertUpgradesPendingToConfirmed(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)
	written := time.Now()

	pending := cachedTx(w.ID, "dd01", TxStatusPending, written)
	if err := s.upsertTransactionsAt(w.ID, []*CachedTx{pending}, written); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}

	confirmed := cachedTx(w.ID, "dd01", TxStatusConfirmed, written)
	confirmed.Confirmations = 6
	if err := s.upsertTransactionsAt(w.ID, []*CachedTx{confirmed}, written); err != nil {
		t.Fatalf("upsert confirmed: %v", err)
	}

	// The confirmed rewrite extends the TTL past the pending lifetime.
	got, err := s.readTransactionsAt(w.ID, 50, written.Add(time.Hour))
	if err != nil {
		t.Fatalf("read after confirm: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d transactions, want 1", len(got))
	}
	if got[0].Status != TxStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got[0].Status)
	}
	if got[0].Confirmations != 6 {
		t.Errorf("confirmations = %d, want 6", got[0].Confirmations)
	}
}

func TestReadTransactionsStale(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)
	written := time.Now().Add(-10 * time.Minute)

	tx := cachedTx(w.ID, "ee01", TxStatusPending, written)
	if err := s.upsertTransactionsAt(w.ID, []*CachedTx{tx}, written); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Normal read misses because the pending TTL has passed.
	if _, err := s.ReadTransactions(w.ID, 50); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	// Stale read still serves the row.
	got, err := s.ReadTransactionsStale(w.ID, 50)
	if err != nil {
		t.Fatalf("ReadTransactionsStale: %v", err)
	}
	if len(got) != 1 || got[0].TxHash != "ee01" {
		t.Fatalf("stale read returned %d rows", len(got))
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStorage(t)
	w := seedWallet(t, s)
	written := time.Now()

	txs := []*CachedTx{
		cachedTx(w.ID, "ff01", TxStatusPending, written),
		cachedTx(w.ID, "ff02", TxStatusConfirmed, written),
	}
	if err := s.upsertTransactionsAt(w.ID, txs, written); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Ten minutes later the pending row has expired, the confirmed has not.
	n, err := s.sweepExpiredAt(written.Add(10 * time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep removed %d rows, want 1", n)
	}

	got, err := s.ReadTransactionsStale(w.ID, 50)
	if err != nil {
		t.Fatalf("ReadTransactionsStale: %v", err)
	}
	if len(got) != 1 || got[0].TxHash != "ff02" {
		t.Fatalf("expected only ff02 to survive, got %d rows", len(got))
	}
}
