// Package provider contains read-only blockchain data providers used for
// donation monitoring. Providers fetch balances, transaction history, and
// fiat prices; they never handle key material and never broadcast anything.
package provider

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// Common errors. Callers rely on these to decide whether to fall back to
// another provider or surface the failure.
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("provider unavailable")
	ErrMalformed       = errors.New("malformed provider response")
	ErrAddressNotFound = errors.New("address not found")
)

// TxStatus mirrors the cache lifecycle states.
type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

// AddressBalance is a point-in-time balance for one address, in the chain's
// smallest unit (satoshis, wei, token base units).
type AddressBalance struct {
	BaseUnits *big.Int
	TxCount   int64
}

// Tx is one transaction touching a monitored address.
type Tx struct {
	Hash          string
	From          string
	To            string
	Amount        *big.Int
	Confirmations int64
	BlockNumber   *int64
	Timestamp     time.Time
	Status        TxStatus
}

// BalanceProvider fetches the current balance of an address.
type BalanceProvider interface {
	Name() string
	GetBalance(ctx context.Context, address string) (*AddressBalance, error)
}

// TxProvider fetches recent transactions for an address, newest first.
type TxProvider interface {
	Name() string
	GetTransactions(ctx context.Context, address string, limit int) ([]Tx, error)
}

// PriceProvider fetches the USD price for an asset.
type PriceProvider interface {
	Name() string
	GetPriceUSD(ctx context.Context, assetID string) (float64, error)
}
