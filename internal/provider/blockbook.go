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

// BlockbookProvider fetches Bitcoin data from a Trezor Blockbook instance.
// Blockbook reports amounts as decimal strings rather than integers, so all
// values pass through big.Int parsing before they reach callers.
type BlockbookProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewBlockbookProvider creates a Blockbook provider.
func NewBlockbookProvider(baseURL string, timeout time.Duration) *BlockbookProvider {
	return &BlockbookProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name for logging.
func (b *BlockbookProvider) Name() string {
	return "blockbook"
}

// GetBalance returns the confirmed balance of an address in satoshis.
func (b *BlockbookProvider) GetBalance(ctx context.Context, address string) (*AddressBalance, error) {
	var result struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
		TxCount int64  `json:"txs"`
	}

	if err := b.get(ctx, "/address/"+address, &result); err != nil {
		return nil, err
	}

	balance, err := parseAmount(result.Balance)
	if err != nil {
		return nil, err
	}

	return &AddressBalance{
		BaseUnits: balance,
		TxCount:   result.TxCount,
	}, nil
}

// blockbookTx is the Blockbook transaction format, trimmed to the fields
// donation history needs.
type blockbookTx struct {
	TxID          string `json:"txid"`
	BlockHeight   int64  `json:"blockHeight"`
	Confirmations int64  `json:"confirmations"`
	BlockTime     int64  `json:"blockTime"`
	Vin           []struct {
		Addresses []string `json:"addresses"`
		Value     string   `json:"value"`
	} `json:"vin"`
	Vout []struct {
		Addresses []string `json:"addresses"`
		Value     string   `json:"value"`
	} `json:"vout"`
}

// GetTransactions returns transactions touching an address, newest first.
func (b *BlockbookProvider) GetTransactions(ctx context.Context, address string, limit int) ([]Tx, error) {
	var result struct {
		Transactions []blockbookTx `json:"transactions"`
	}

	if err := b.get(ctx, "/address/"+address+"?details=txs", &result); err != nil {
		return nil, err
	}

	txs := make([]Tx, 0, len(result.Transactions))
	for _, bt := range result.Transactions {
		if limit > 0 && len(txs) >= limit {
			break
		}

		received := new(big.Int)
		for _, vout := range bt.Vout {
			for _, a := range vout.Addresses {
				if a == address {
					v, err := parseAmount(vout.Value)
					if err != nil {
						return nil, err
					}
					received.Add(received, v)
				}
			}
		}

		var from string
		if len(bt.Vin) > 0 && len(bt.Vin[0].Addresses) > 0 {
			from = bt.Vin[0].Addresses[0]
		}

		tx := Tx{
			Hash:      bt.TxID,
			From:      from,
			To:        address,
			Amount:    received,
			Status:    TxPending,
			Timestamp: time.Unix(bt.BlockTime, 0),
		}
		if bt.Confirmations > 0 && bt.BlockHeight > 0 {
			tx.Status = TxConfirmed
			tx.Confirmations = bt.Confirmations
			height := bt.BlockHeight
			tx.BlockNumber = &height
		} else {
			tx.Timestamp = time.Now()
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// parseAmount parses a Blockbook decimal-string amount into base units.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad amount %q", ErrMalformed, s)
	}
	return v, nil
}

// get performs a GET request and decodes the JSON response.
func (b *BlockbookProvider) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := b.httpClient.Do(req)
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
	_ BalanceProvider = (*BlockbookProvider)(nil)
	_ TxProvider      = (*BlockbookProvider)(nil)
)
