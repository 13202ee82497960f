package storage

import (
	"errors"
	"testing"
)

func TestCreateAndGetWallet(t *testing.T) {
	s := newTestStorage(t)

	w := testWallet("BTC", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	if err := s.CreateWallet(w); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if w.ID == "" {
		t.Fatal("CreateWallet did not assign an ID")
	}

	got, err := s.GetWallet(w.ID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.Address != w.Address {
		t.Errorf("address = %s, want %s", got.Address, w.Address)
	}
	if got.Chain != "BTC" {
		t.Errorf("chain = %s, want BTC", got.Chain)
	}
	if got.Label != "building fund" {
		t.Errorf("label = %s, want building fund", got.Label)
	}
	if got.BalanceCrypto != "0" {
		t.Errorf("initial balance = %s, want 0", got.BalanceCrypto)
	}
	if !got.IsActive {
		t.Error("wallet should be active")
	}
	if got.LastBalanceUpdate != nil {
		t.Error("fresh wallet should have no balance timestamp")
	}
}

func TestGetWalletByAddress(t *testing.T) {
	s := newTestStorage(t)

	w := testWallet("ETH", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err := s.CreateWallet(w); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	got, err := s.GetWalletByAddress(w.Address)
	if err != nil {
		t.Fatalf("GetWalletByAddress: %v", err)
	}
	if got.ID != w.ID {
		t.Errorf("id = %s, want %s", got.ID, w.ID)
	}
}

func TestCreateWalletDuplicateAddress(t *testing.T) {
	s := newTestStorage(t)

	addr := "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	if err := s.CreateWallet(testWallet("BTC", addr)); err != nil {
		t.Fatalf("first CreateWallet: %v", err)
	}

	err := s.CreateWallet(testWallet("BTC", addr))
	if !errors.Is(err, ErrDuplicateAddress) {
		t.Fatalf("expected ErrDuplicateAddress, got %v", err)
	}
}

func TestCreateWalletDuplicateIDNotDuplicateAddress(t *testing.T) {
	s := newTestStorage(t)

	first := testWallet("BTC", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	first.ID = "fixed-id"
	if err := s.CreateWallet(first); err != nil {
		t.Fatalf("first CreateWallet: %v", err)
	}

	// Same id, different address: a primary-key collision, not a duplicate
	// donation address.
	second := testWallet("ETH", "0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	second.ID = "fixed-id"
	err := s.CreateWallet(second)
	if err == nil {
		t.Fatal("expected error for id collision")
	}
	if errors.Is(err, ErrDuplicateAddress) {
		t.Fatalf("id collision mislabeled as duplicate address: %v", err)
	}
}

func TestGetWalletNotFound(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.GetWallet("missing"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestListWalletsActiveOnly(t *testing.T) {
	s := newTestStorage(t)

	active := testWallet("BTC", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	if err := s.CreateWallet(active); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	retired := testWallet("ETH", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	retired.IsActive = false
	if err := s.CreateWallet(retired); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	all, err := s.ListWallets(false)
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListWallets(false) returned %d wallets, want 2", len(all))
	}

	activeOnly, err := s.ListWallets(true)
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(activeOnly) != 1 {
		t.Fatalf("ListWallets(true) returned %d wallets, want 1", len(activeOnly))
	}
	if activeOnly[0].ID != active.ID {
		t.Errorf("active wallet id = %s, want %s", activeOnly[0].ID, active.ID)
	}
}

func TestUpdateWalletBalance(t *testing.T) {
	s := newTestStorage(t)

	w := testWallet("BTC", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	if err := s.CreateWallet(w); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	if err := s.UpdateWalletBalance(w.ID, "150000000", 135000.50); err != nil {
		t.Fatalf("UpdateWalletBalance: %v", err)
	}

	got, err := s.GetWallet(w.ID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.BalanceCrypto != "150000000" {
		t.Errorf("balance = %s, want 150000000", got.BalanceCrypto)
	}
	if got.BalanceUSD != 135000.50 {
		t.Errorf("usd = %f, want 135000.50", got.BalanceUSD)
	}
	if got.LastBalanceUpdate == nil {
		t.Error("balance timestamp not recorded")
	}
}

func TestUpdateWalletBalanceNotFound(t *testing.T) {
	s := newTestStorage(t)

	err := s.UpdateWalletBalance("missing", "1", 1)
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestSetWalletActive(t *testing.T) {
	s := newTestStorage(t)

	w := testWallet("BTC", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	if err := s.CreateWallet(w); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	if err := s.SetWalletActive(w.ID, false); err != nil {
		t.Fatalf("SetWalletActive: %v", err)
	}

	got, err := s.GetWallet(w.ID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.IsActive {
		t.Error("wallet should be inactive")
	}
}
