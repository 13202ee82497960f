// Package history serves donation transaction history, cache first. A cache
// miss triggers a live provider fetch whose results are written back; when
// the live fetch also fails, expired cache rows are served as a last resort.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jords94/churchcryptodonations-sub000/internal/chain"
	"github.com/jords94/churchcryptodonations-sub000/internal/provider"
	"github.com/jords94/churchcryptodonations-sub000/internal/storage"
	"github.com/jords94/churchcryptodonations-sub000/pkg/helpers"
	"github.com/jords94/churchcryptodonations-sub000/pkg/logging"
)

// DefaultLimit caps how many transactions one request returns.
const DefaultLimit = 50

// Source tells the caller where the served history came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceLive  Source = "live"
	SourceStale Source = "stale"
)

// Result is one history lookup.
type Result struct {
	Transactions []*storage.CachedTx
	Source       Source
}

// Notifier receives history change events. Nil disables notifications.
type Notifier interface {
	TransactionsUpdated(walletID, address string, count int)
}

// Service answers history queries for registered wallets.
type Service struct {
	store     *storage.Storage
	providers map[chain.Chain][]provider.TxProvider
	price     provider.PriceProvider
	notifier  Notifier
	log       *logging.Logger
}

// Config assembles a history Service.
type Config struct {
	Store     *storage.Storage
	Providers map[chain.Chain][]provider.TxProvider
	Price     provider.PriceProvider
	Notifier  Notifier
	Logger    *logging.Logger
}

// New creates a history service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}
	return &Service{
		store:     cfg.Store,
		providers: cfg.Providers,
		price:     cfg.Price,
		notifier:  cfg.Notifier,
		log:       log.Component("history"),
	}
}

// GetTransactions returns a wallet's transaction history, newest first.
func (s *Service) GetTransactions(ctx context.Context, walletID string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	w, err := s.store.GetWallet(walletID)
	if err != nil {
		return nil, err
	}

	cached, err := s.store.ReadTransactions(walletID, limit)
	if err == nil {
		return &Result{Transactions: cached, Source: SourceCache}, nil
	}
	if !errors.Is(err, storage.ErrCacheMiss) {
		return nil, err
	}

	// Cache miss: fetch live and write back.
	txs, fetchErr := s.fetchLive(ctx, w, limit)
	if fetchErr == nil {
		if err := s.store.UpsertTransactions(walletID, txs); err != nil {
			return nil, err
		}
		if s.notifier != nil {
			s.notifier.TransactionsUpdated(walletID, w.Address, len(txs))
		}
		return &Result{Transactions: txs, Source: SourceLive}, nil
	}

	// Live fetch failed: serve whatever the cache still holds, even expired.
	s.log.Warn("live history fetch failed, trying stale cache", "wallet", walletID, "err", fetchErr)
	stale, staleErr := s.store.ReadTransactionsStale(walletID, limit)
	if staleErr == nil {
		return &Result{Transactions: stale, Source: SourceStale}, nil
	}
	return nil, fmt.Errorf("history unavailable for wallet %s: %w", walletID, fetchErr)
}

// fetchLive tries each provider for the wallet's chain in order and converts
// the results into cache rows with a best-effort USD estimate.
func (s *Service) fetchLive(ctx context.Context, w *storage.Wallet, limit int) ([]*storage.CachedTx, error) {
	c := chain.Chain(w.Chain)
	params, err := c.Params()
	if err != nil {
		return nil, err
	}

	providers := s.providers[c]
	if len(providers) == 0 {
		return nil, fmt.Errorf("no history providers for chain %s", c)
	}

	var txs []provider.Tx
	var errs []error
	fetched := false
	for _, p := range providers {
		var fetchErr error
		txs, fetchErr = p.GetTransactions(ctx, w.Address, limit)
		if fetchErr == nil {
			fetched = true
			break
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), fetchErr))
		s.log.Warn("provider failed, trying next", "provider", p.Name(), "chain", c, "err", fetchErr)
	}
	if !fetched {
		return nil, errors.Join(errs...)
	}

	price := 0.0
	if s.price != nil {
		price, err = s.price.GetPriceUSD(ctx, params.PriceAssetID)
		if err != nil {
			s.log.Warn("price fetch failed, recording $0 estimates", "asset", params.PriceAssetID, "err", err)
			price = 0
		}
	}

	rows := make([]*storage.CachedTx, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, &storage.CachedTx{
			WalletID:      w.ID,
			TxHash:        tx.Hash,
			Chain:         w.Chain,
			FromAddress:   tx.From,
			ToAddress:     tx.To,
			AmountCrypto:  helpers.FormatUnits(tx.Amount, params.Decimals),
			AmountUSD:     helpers.UnitsToFloat(tx.Amount, params.Decimals) * price,
			Confirmations: tx.Confirmations,
			BlockNumber:   tx.BlockNumber,
			TransactedAt:  tx.Timestamp,
			Status:        storage.TxStatus(tx.Status),
		})
	}
	return rows, nil
}
