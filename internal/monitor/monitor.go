// Package monitor refreshes donation wallet balances. Each chain has an
// ordered list of balance providers; a failing provider falls through to the
// next one before the refresh is declared failed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jords94/churchcryptodonations-sub000/internal/chain"
	"github.com/jords94/churchcryptodonations-sub000/internal/provider"
	"github.com/jords94/churchcryptodonations-sub000/internal/storage"
	"github.com/jords94/churchcryptodonations-sub000/pkg/helpers"
	"github.com/jords94/churchcryptodonations-sub000/pkg/logging"
)

// DefaultBatchDelay is the pause between wallets during a batch refresh,
// to stay under public API rate limits.
const DefaultBatchDelay = time.Second

// Result reports the outcome of one wallet's balance refresh. BalanceCrypto
// is in display units (BTC, ETH, USDT); BalanceBaseUnits carries the raw
// provider integer (satoshis, wei) for callers that need exact arithmetic.
type Result struct {
	WalletID         string
	Address          string
	Success          bool
	BalanceCrypto    string
	BalanceBaseUnits string
	BalanceUSD       float64
	Err              error
}

// Summary tallies a batch refresh.
type Summary struct {
	Total   int
	Updated int
	Failed  int
}

// Notifier receives balance change events. The zero value (nil) disables
// notifications.
type Notifier interface {
	BalanceUpdated(walletID, address, balanceCrypto, balanceBaseUnits string, balanceUSD float64)
}

// Monitor fetches balances via providers and persists snapshots.
type Monitor struct {
	store      *storage.Storage
	providers  map[chain.Chain][]provider.BalanceProvider
	price      provider.PriceProvider
	notifier   Notifier
	batchDelay time.Duration
	log        *logging.Logger
}

// Config assembles a Monitor.
type Config struct {
	Store      *storage.Storage
	Providers  map[chain.Chain][]provider.BalanceProvider
	Price      provider.PriceProvider
	Notifier   Notifier
	BatchDelay time.Duration
	Logger     *logging.Logger
}

// New creates a balance monitor.
func New(cfg Config) *Monitor {
	delay := cfg.BatchDelay
	if delay == 0 {
		delay = DefaultBatchDelay
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}
	return &Monitor{
		store:      cfg.Store,
		providers:  cfg.Providers,
		price:      cfg.Price,
		notifier:   cfg.Notifier,
		batchDelay: delay,
		log:        log.Component("monitor"),
	}
}

// UpdateWalletBalance refreshes one wallet's balance. The fiat estimate is
// best effort: a price feed failure degrades to $0 rather than failing the
// whole refresh.
func (m *Monitor) UpdateWalletBalance(ctx context.Context, walletID string) Result {
	w, err := m.store.GetWallet(walletID)
	if err != nil {
		return Result{WalletID: walletID, Err: err}
	}

	c := chain.Chain(w.Chain)
	params, err := c.Params()
	if err != nil {
		return Result{WalletID: walletID, Address: w.Address, Err: err}
	}

	balance, err := m.fetchBalance(ctx, c, w.Address)
	if err != nil {
		m.log.Error("balance refresh failed", "wallet", walletID, "chain", c, "err", err)
		return Result{WalletID: walletID, Address: w.Address, Err: err}
	}

	balanceUSD := 0.0
	if m.price != nil {
		price, err := m.price.GetPriceUSD(ctx, params.PriceAssetID)
		if err != nil {
			m.log.Warn("price fetch failed, recording $0 estimate", "asset", params.PriceAssetID, "err", err)
		} else {
			balanceUSD = helpers.UnitsToFloat(balance.BaseUnits, params.Decimals) * price
		}
	}

	// Snapshots are stored in display units; the raw integer stays available
	// on the Result and in notifications.
	balanceCrypto := helpers.FormatUnits(balance.BaseUnits, params.Decimals)
	balanceBaseUnits := balance.BaseUnits.String()
	if err := m.store.UpdateWalletBalance(walletID, balanceCrypto, balanceUSD); err != nil {
		return Result{WalletID: walletID, Address: w.Address, Err: err}
	}

	m.log.Info("balance updated",
		"wallet", walletID,
		"chain", c,
		"balance", balanceCrypto,
		"usd", fmt.Sprintf("%.2f", balanceUSD),
	)

	if m.notifier != nil {
		m.notifier.BalanceUpdated(walletID, w.Address, balanceCrypto, balanceBaseUnits, balanceUSD)
	}

	return Result{
		WalletID:         walletID,
		Address:          w.Address,
		Success:          true,
		BalanceCrypto:    balanceCrypto,
		BalanceBaseUnits: balanceBaseUnits,
		BalanceUSD:       balanceUSD,
	}
}

// fetchBalance tries each provider for the chain in order.
func (m *Monitor) fetchBalance(ctx context.Context, c chain.Chain, address string) (*provider.AddressBalance, error) {
	providers := m.providers[c]
	if len(providers) == 0 {
		return nil, fmt.Errorf("no balance providers for chain %s", c)
	}

	var errs []error
	for _, p := range providers {
		balance, err := p.GetBalance(ctx, address)
		if err == nil {
			return balance, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		m.log.Warn("provider failed, trying next", "provider", p.Name(), "chain", c, "err", err)
	}
	// Join keeps every provider's error inspectable: a rate limit on the
	// primary is not masked by the fallback's failure mode.
	return nil, fmt.Errorf("all providers failed for %s: %w", c, errors.Join(errs...))
}

// UpdateAllBalances refreshes every active wallet with a delay between
// requests. Failures are tallied, not fatal; one bad wallet never stops the
// sweep.
func (m *Monitor) UpdateAllBalances(ctx context.Context) (*Summary, error) {
	wallets, err := m.store.ListWallets(true)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(wallets)}
	for i, w := range wallets {
		if i > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(m.batchDelay):
			}
		}

		result := m.UpdateWalletBalance(ctx, w.ID)
		if result.Success {
			summary.Updated++
		} else {
			summary.Failed++
		}
	}

	if err := m.store.SetSetting("last_refresh", strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
		m.log.Warn("recording refresh timestamp failed", "err", err)
	}

	m.log.Info("batch refresh complete",
		"total", summary.Total,
		"updated", summary.Updated,
		"failed", summary.Failed,
	)
	return summary, nil
}
