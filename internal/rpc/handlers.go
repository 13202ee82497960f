// JSON-RPC method handlers.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jords94/churchcryptodonations-sub000/internal/chain"
	"github.com/jords94/churchcryptodonations-sub000/internal/mnemonic"
	"github.com/jords94/churchcryptodonations-sub000/internal/storage"
	"github.com/jords94/churchcryptodonations-sub000/internal/wallet"
)

// nodeStatus returns daemon status.
func (s *Server) nodeStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	wallets, err := s.store.ListWallets(false)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"version":    s.version,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"wallets":    len(wallets),
		"ws_clients": s.wsHub.ClientCount(),
	}, nil
}

// deriveParams are shared by wallet_derive and wallet_create.
type deriveParams struct {
	Mnemonic     string `json:"mnemonic,omitempty"`
	Passphrase   string `json:"passphrase,omitempty"`
	Chain        string `json:"chain"`
	Account      uint32 `json:"account,omitempty"`
	AddressIndex uint32 `json:"address_index,omitempty"`
	Label        string `json:"label,omitempty"`
}

// walletDerive derives an address without persisting anything.
func (s *Server) walletDerive(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p deriveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	c, err := chain.Parse(p.Chain)
	if err != nil {
		return nil, err
	}

	return s.wallet.DeriveWallet(wallet.DeriveRequest{
		Mnemonic:     p.Mnemonic,
		Passphrase:   p.Passphrase,
		Chain:        c,
		Account:      p.Account,
		AddressIndex: p.AddressIndex,
	})
}

// walletInfo is the wire shape of a registered wallet.
type walletInfo struct {
	ID                string  `json:"id"`
	Chain             string  `json:"chain"`
	Address           string  `json:"address"`
	DerivationPath    string  `json:"derivation_path"`
	Label             string  `json:"label,omitempty"`
	BalanceCrypto     string  `json:"balance_crypto"`
	BalanceUSD        float64 `json:"balance_usd"`
	LastBalanceUpdate int64   `json:"last_balance_update,omitempty"`
	IsActive          bool    `json:"is_active"`
	CreatedAt         int64   `json:"created_at"`

	// Set only when the daemon generated the mnemonic for this request.
	Mnemonic string `json:"mnemonic,omitempty"`
}

func toWalletInfo(w *storage.Wallet) *walletInfo {
	info := &walletInfo{
		ID:             w.ID,
		Chain:          w.Chain,
		Address:        w.Address,
		DerivationPath: w.DerivationPath,
		Label:          w.Label,
		BalanceCrypto:  w.BalanceCrypto,
		BalanceUSD:     w.BalanceUSD,
		IsActive:       w.IsActive,
		CreatedAt:      w.CreatedAt.Unix(),
	}
	if w.LastBalanceUpdate != nil {
		info.LastBalanceUpdate = w.LastBalanceUpdate.Unix()
	}
	return info
}

// walletCreate derives an address and registers it for monitoring.
func (s *Server) walletCreate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p deriveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	c, err := chain.Parse(p.Chain)
	if err != nil {
		return nil, err
	}

	derived, err := s.wallet.DeriveWallet(wallet.DeriveRequest{
		Mnemonic:     p.Mnemonic,
		Passphrase:   p.Passphrase,
		Chain:        c,
		Account:      p.Account,
		AddressIndex: p.AddressIndex,
	})
	if err != nil {
		return nil, err
	}

	w := &storage.Wallet{
		Chain:          string(derived.Chain),
		Address:        derived.Address,
		DerivationPath: derived.DerivationPath,
		Label:          p.Label,
		IsActive:       true,
	}
	if err := s.store.CreateWallet(w); err != nil {
		return nil, err
	}

	s.wsHub.Broadcast(EventWalletCreated, map[string]interface{}{
		"wallet_id": w.ID,
		"chain":     w.Chain,
		"address":   w.Address,
	})

	info := toWalletInfo(w)
	info.Mnemonic = derived.Mnemonic
	return info, nil
}

// walletList returns registered wallets.
func (s *Server) walletList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		ActiveOnly bool `json:"active_only,omitempty"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	wallets, err := s.store.ListWallets(p.ActiveOnly)
	if err != nil {
		return nil, err
	}

	infos := make([]*walletInfo, len(wallets))
	for i, w := range wallets {
		infos[i] = toWalletInfo(w)
	}
	return infos, nil
}

// walletGet returns one wallet by ID.
func (s *Server) walletGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WalletID string `json:"wallet_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	w, err := s.store.GetWallet(p.WalletID)
	if err != nil {
		return nil, err
	}
	return toWalletInfo(w), nil
}

// walletSetActive toggles monitoring for a wallet.
func (s *Server) walletSetActive(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WalletID string `json:"wallet_id"`
		Active   bool   `json:"active"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if err := s.store.SetWalletActive(p.WalletID, p.Active); err != nil {
		return nil, err
	}
	return map[string]bool{"active": p.Active}, nil
}

// walletValidateAddress checks address syntax for a chain.
func (s *Server) walletValidateAddress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Chain   string `json:"chain"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	c, err := chain.Parse(p.Chain)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{"valid": true}
	if err := wallet.ValidateAddressReason(c, p.Address); err != nil {
		result["valid"] = false
		result["reason"] = err.Error()
	}
	return result, nil
}

// walletValidateMnemonic checks a BIP39 phrase without deriving anything.
func (s *Server) walletValidateMnemonic(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Mnemonic string `json:"mnemonic"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	return map[string]bool{"valid": mnemonic.Validate(p.Mnemonic)}, nil
}

// walletSupportedChains lists the chains this daemon can derive for.
func (s *Server) walletSupportedChains(ctx context.Context, params json.RawMessage) (interface{}, error) {
	chains := make([]map[string]interface{}, 0, len(chain.All()))
	for _, c := range chain.All() {
		p, err := c.Params()
		if err != nil {
			return nil, err
		}
		entry := map[string]interface{}{
			"symbol":   p.Symbol,
			"name":     p.Name,
			"decimals": p.Decimals,
		}
		if p.TokenContract != "" {
			entry["token_contract"] = p.TokenContract
		}
		chains = append(chains, entry)
	}
	return chains, nil
}

// walletBackupChallenge samples word positions from a mnemonic. The phrase
// lives only in this request; nothing is stored.
func (s *Server) walletBackupChallenge(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Mnemonic string `json:"mnemonic"`
		Words    int    `json:"words,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.Words == 0 {
		p.Words = mnemonic.DefaultChallengeWords
	}

	words, err := s.wallet.BackupChallenge(p.Mnemonic, p.Words)
	if err != nil {
		return nil, err
	}

	// Only the positions go back to the caller.
	positions := make([]int, len(words))
	for i, w := range words {
		positions[i] = w.Index
	}
	return map[string]interface{}{"positions": positions}, nil
}

// walletVerifyBackup checks challenge answers against the mnemonic.
func (s *Server) walletVerifyBackup(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Mnemonic string            `json:"mnemonic"`
		Answers  []mnemonic.Answer `json:"answers"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	return map[string]bool{"verified": s.wallet.VerifyBackup(p.Mnemonic, p.Answers)}, nil
}

// walletUpdateBalance refreshes one wallet's balance.
func (s *Server) walletUpdateBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WalletID string `json:"wallet_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	result := s.monitor.UpdateWalletBalance(ctx, p.WalletID)
	if result.Err != nil {
		return nil, result.Err
	}
	return map[string]interface{}{
		"wallet_id":          result.WalletID,
		"address":            result.Address,
		"balance_crypto":     result.BalanceCrypto,
		"balance_base_units": result.BalanceBaseUnits,
		"balance_usd":        result.BalanceUSD,
	}, nil
}

// walletUpdateAllBalances refreshes all active wallets.
func (s *Server) walletUpdateAllBalances(ctx context.Context, params json.RawMessage) (interface{}, error) {
	summary, err := s.monitor.UpdateAllBalances(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		"total":   summary.Total,
		"updated": summary.Updated,
		"failed":  summary.Failed,
	}, nil
}

// txInfo is the wire shape of a cached transaction.
type txInfo struct {
	TxHash        string  `json:"tx_hash"`
	Chain         string  `json:"chain"`
	From          string  `json:"from,omitempty"`
	To            string  `json:"to,omitempty"`
	AmountCrypto  string  `json:"amount_crypto"`
	AmountUSD     float64 `json:"amount_usd"`
	Confirmations int64   `json:"confirmations"`
	BlockNumber   *int64  `json:"block_number,omitempty"`
	TransactedAt  int64   `json:"transacted_at"`
	Status        string  `json:"status"`
}

// walletHistory returns a wallet's transaction history, cache first.
func (s *Server) walletHistory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WalletID string `json:"wallet_id"`
		Limit    int    `json:"limit,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	result, err := s.history.GetTransactions(ctx, p.WalletID, p.Limit)
	if err != nil {
		return nil, err
	}

	txs := make([]*txInfo, len(result.Transactions))
	for i, t := range result.Transactions {
		txs[i] = &txInfo{
			TxHash:        t.TxHash,
			Chain:         t.Chain,
			From:          t.FromAddress,
			To:            t.ToAddress,
			AmountCrypto:  t.AmountCrypto,
			AmountUSD:     t.AmountUSD,
			Confirmations: t.Confirmations,
			BlockNumber:   t.BlockNumber,
			TransactedAt:  t.TransactedAt.Unix(),
			Status:        string(t.Status),
		}
	}
	return map[string]interface{}{
		"source":       string(result.Source),
		"transactions": txs,
	}, nil
}
