package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// EtherscanProvider fetches Ethereum and ERC-20 transaction history from an
// Etherscan-compatible API. When tokenContract is set, it queries token
// transfer events for that contract instead of normal transactions.
type EtherscanProvider struct {
	baseURL       string
	apiKey        string
	tokenContract string
	httpClient    *http.Client
}

// NewEtherscanProvider creates an Etherscan history provider.
func NewEtherscanProvider(baseURL, apiKey string, timeout time.Duration) *EtherscanProvider {
	return &EtherscanProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewEtherscanTokenProvider creates an Etherscan provider scoped to one
// ERC-20 contract's transfer events.
func NewEtherscanTokenProvider(baseURL, apiKey, tokenContract string, timeout time.Duration) *EtherscanProvider {
	p := NewEtherscanProvider(baseURL, apiKey, timeout)
	p.tokenContract = tokenContract
	return p
}

// Name returns the provider name for logging.
func (e *EtherscanProvider) Name() string {
	if e.tokenContract != "" {
		return "etherscan-token"
	}
	return "etherscan"
}

// etherscanTx covers both txlist and tokentx rows. IsError is absent from
// tokentx responses and defaults to "0".
type etherscanTx struct {
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	BlockNumber   string `json:"blockNumber"`
	TimeStamp     string `json:"timeStamp"`
	Confirmations string `json:"confirmations"`
	IsError       string `json:"isError"`
}

// GetTransactions returns transactions for an address, newest first.
func (e *EtherscanProvider) GetTransactions(ctx context.Context, address string, limit int) ([]Tx, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("address", address)
	params.Set("sort", "desc")
	params.Set("page", "1")
	if limit > 0 {
		params.Set("offset", strconv.Itoa(limit))
	}
	if e.apiKey != "" {
		params.Set("apikey", e.apiKey)
	}
	if e.tokenContract != "" {
		params.Set("action", "tokentx")
		params.Set("contractaddress", e.tokenContract)
	} else {
		params.Set("action", "txlist")
	}

	var result struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := e.get(ctx, params, &result); err != nil {
		return nil, err
	}

	// Etherscan reports rate limits inside a 200 response.
	if result.Status == "0" && strings.Contains(result.Message, "rate limit") {
		return nil, ErrRateLimited
	}

	var rows []etherscanTx
	if err := json.Unmarshal(result.Result, &rows); err != nil {
		// "No transactions found" puts a string in result.
		if result.Status == "0" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	txs := make([]Tx, 0, len(rows))
	for _, row := range rows {
		amount, ok := new(big.Int).SetString(row.Value, 10)
		if !ok {
			return nil, fmt.Errorf("%w: bad value %q", ErrMalformed, row.Value)
		}

		confirmations, _ := strconv.ParseInt(row.Confirmations, 10, 64)
		timestamp, _ := strconv.ParseInt(row.TimeStamp, 10, 64)

		tx := Tx{
			Hash:          row.Hash,
			From:          row.From,
			To:            row.To,
			Amount:        amount,
			Confirmations: confirmations,
			Timestamp:     time.Unix(timestamp, 0),
			Status:        TxPending,
		}
		if blockNumber, err := strconv.ParseInt(row.BlockNumber, 10, 64); err == nil && blockNumber > 0 {
			tx.BlockNumber = &blockNumber
		}
		switch {
		case row.IsError == "1":
			tx.Status = TxFailed
		case confirmations > 0:
			tx.Status = TxConfirmed
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (e *EtherscanProvider) get(ctx context.Context, params url.Values, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", e.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
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

var _ TxProvider = (*EtherscanProvider)(nil)
