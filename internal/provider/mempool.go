package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// MempoolProvider fetches Bitcoin data from the mempool.space API.
// Compatible with mempool.space and self-hosted instances.
type MempoolProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewMempoolProvider creates a mempool.space provider.
func NewMempoolProvider(baseURL string, timeout time.Duration) *MempoolProvider {
	return &MempoolProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name for logging.
func (m *MempoolProvider) Name() string {
	return "mempool"
}

// GetBalance returns the confirmed balance of an address in satoshis.
func (m *MempoolProvider) GetBalance(ctx context.Context, address string) (*AddressBalance, error) {
	var result struct {
		Address    string `json:"address"`
		ChainStats struct {
			FundedTxoSum uint64 `json:"funded_txo_sum"`
			SpentTxoSum  uint64 `json:"spent_txo_sum"`
			TxCount      int64  `json:"tx_count"`
		} `json:"chain_stats"`
		MempoolStats struct {
			TxCount int64 `json:"tx_count"`
		} `json:"mempool_stats"`
	}

	if err := m.get(ctx, "/address/"+address, &result); err != nil {
		return nil, err
	}

	balance := new(big.Int).SetUint64(result.ChainStats.FundedTxoSum)
	balance.Sub(balance, new(big.Int).SetUint64(result.ChainStats.SpentTxoSum))

	return &AddressBalance{
		BaseUnits: balance,
		TxCount:   result.ChainStats.TxCount + result.MempoolStats.TxCount,
	}, nil
}

// mempoolTx is the mempool.space transaction format, trimmed to the fields
// donation history needs.
type mempoolTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
		BlockTime   int64 `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		Prevout *struct {
			ScriptPubKeyAddr string `json:"scriptpubkey_address"`
			Value            uint64 `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKeyAddr string `json:"scriptpubkey_address"`
		Value            uint64 `json:"value"`
	} `json:"vout"`
}

// GetTransactions returns transactions touching an address, newest first.
// Amount is the value received by the address in each transaction.
func (m *MempoolProvider) GetTransactions(ctx context.Context, address string, limit int) ([]Tx, error) {
	var result []mempoolTx
	if err := m.get(ctx, "/address/"+address+"/txs", &result); err != nil {
		return nil, err
	}

	// mempool.space reports block height, not confirmations.
	tipHeight, err := m.getTipHeight(ctx)
	if err != nil {
		tipHeight = 0
	}

	txs := make([]Tx, 0, len(result))
	for _, mt := range result {
		if limit > 0 && len(txs) >= limit {
			break
		}

		received := new(big.Int)
		for _, vout := range mt.Vout {
			if vout.ScriptPubKeyAddr == address {
				received.Add(received, new(big.Int).SetUint64(vout.Value))
			}
		}

		var from string
		if len(mt.Vin) > 0 && mt.Vin[0].Prevout != nil {
			from = mt.Vin[0].Prevout.ScriptPubKeyAddr
		}

		tx := Tx{
			Hash:      mt.TxID,
			From:      from,
			To:        address,
			Amount:    received,
			Status:    TxPending,
			Timestamp: time.Unix(mt.Status.BlockTime, 0),
		}
		if mt.Status.Confirmed && mt.Status.BlockHeight > 0 {
			tx.Status = TxConfirmed
			height := mt.Status.BlockHeight
			tx.BlockNumber = &height
			if tipHeight >= height {
				tx.Confirmations = tipHeight - height + 1
			} else {
				tx.Confirmations = 1
			}
		} else {
			// Unconfirmed transactions carry no block time.
			tx.Timestamp = time.Now()
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (m *MempoolProvider) getTipHeight(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+"/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var height int64
	if err := json.Unmarshal(body, &height); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return height, nil
}

// get performs a GET request and decodes the JSON response.
func (m *MempoolProvider) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+path, nil)
	if err != nil {
		return err
	}

	// Add cache-busting headers to avoid stale CDN responses
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrAddressNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

var (
	_ BalanceProvider = (*MempoolProvider)(nil)
	_ TxProvider      = (*MempoolProvider)(nil)
)
