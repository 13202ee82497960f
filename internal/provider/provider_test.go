package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

func TestMempoolGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/address/bc1qtest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"address": "bc1qtest",
			"chain_stats": {"funded_txo_sum": 150000000, "spent_txo_sum": 50000000, "tx_count": 7},
			"mempool_stats": {"tx_count": 1}
		}`))
	}))
	defer server.Close()

	p := NewMempoolProvider(server.URL, testTimeout)
	balance, err := p.GetBalance(context.Background(), "bc1qtest")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.BaseUnits.Int64() != 100000000 {
		t.Errorf("balance = %s, want 100000000", balance.BaseUnits)
	}
	if balance.TxCount != 8 {
		t.Errorf("tx count = %d, want 8", balance.TxCount)
	}
}

func TestMempoolRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewMempoolProvider(server.URL, testTimeout)
	if _, err := p.GetBalance(context.Background(), "bc1qtest"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestMempoolUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewMempoolProvider(server.URL, testTimeout)
	if _, err := p.GetBalance(context.Background(), "bc1qtest"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMempoolMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	p := NewMempoolProvider(server.URL, testTimeout)
	if _, err := p.GetBalance(context.Background(), "bc1qtest"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestMempoolGetTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blocks/tip/height":
			w.Write([]byte(`800010`))
		case "/address/bc1qtest/txs":
			w.Write([]byte(`[
				{
					"txid": "aa01",
					"status": {"confirmed": true, "block_height": 800001, "block_time": 1700000000},
					"vin": [{"prevout": {"scriptpubkey_address": "bc1qsender", "value": 500000}}],
					"vout": [
						{"scriptpubkey_address": "bc1qtest", "value": 300000},
						{"scriptpubkey_address": "bc1qchange", "value": 190000}
					]
				},
				{
					"txid": "aa02",
					"status": {"confirmed": false},
					"vin": [],
					"vout": [{"scriptpubkey_address": "bc1qtest", "value": 25000}]
				}
			]`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewMempoolProvider(server.URL, testTimeout)
	txs, err := p.GetTransactions(context.Background(), "bc1qtest", 50)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	confirmed := txs[0]
	if confirmed.Hash != "aa01" {
		t.Errorf("hash = %s, want aa01", confirmed.Hash)
	}
	if confirmed.Status != TxConfirmed {
		t.Errorf("status = %s, want CONFIRMED", confirmed.Status)
	}
	// Only the output paying our address counts.
	if confirmed.Amount.Int64() != 300000 {
		t.Errorf("amount = %s, want 300000", confirmed.Amount)
	}
	if confirmed.Confirmations != 10 {
		t.Errorf("confirmations = %d, want 10", confirmed.Confirmations)
	}
	if confirmed.From != "bc1qsender" {
		t.Errorf("from = %s, want bc1qsender", confirmed.From)
	}

	pending := txs[1]
	if pending.Status != TxPending {
		t.Errorf("status = %s, want PENDING", pending.Status)
	}
	if pending.BlockNumber != nil {
		t.Error("pending transaction should have no block number")
	}
}

func TestBlockbookGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Blockbook reports amounts as strings.
		w.Write([]byte(`{"address": "bc1qtest", "balance": "123456789", "txs": 3}`))
	}))
	defer server.Close()

	p := NewBlockbookProvider(server.URL, testTimeout)
	balance, err := p.GetBalance(context.Background(), "bc1qtest")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.BaseUnits.Int64() != 123456789 {
		t.Errorf("balance = %s, want 123456789", balance.BaseUnits)
	}
	if balance.TxCount != 3 {
		t.Errorf("tx count = %d, want 3", balance.TxCount)
	}
}

func TestBlockbookBadAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address": "bc1qtest", "balance": "1.5 BTC", "txs": 3}`))
	}))
	defer server.Close()

	p := NewBlockbookProvider(server.URL, testTimeout)
	if _, err := p.GetBalance(context.Background(), "bc1qtest"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestBlockbookGetTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions": [
			{
				"txid": "bb01",
				"blockHeight": 800001,
				"confirmations": 12,
				"blockTime": 1700000000,
				"vin": [{"addresses": ["bc1qsender"], "value": "500000"}],
				"vout": [{"addresses": ["bc1qtest"], "value": "450000"}]
			}
		]}`))
	}))
	defer server.Close()

	p := NewBlockbookProvider(server.URL, testTimeout)
	txs, err := p.GetTransactions(context.Background(), "bc1qtest", 50)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if txs[0].Amount.Int64() != 450000 {
		t.Errorf("amount = %s, want 450000", txs[0].Amount)
	}
	if txs[0].Confirmations != 12 {
		t.Errorf("confirmations = %d, want 12", txs[0].Confirmations)
	}
	if txs[0].Status != TxConfirmed {
		t.Errorf("status = %s, want CONFIRMED", txs[0].Status)
	}
}

func TestEtherscanGetTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "txlist" {
			t.Errorf("action = %s, want txlist", got)
		}
		w.Write([]byte(`{"status": "1", "message": "OK", "result": [
			{
				"hash": "0xcc01",
				"from": "0xsender",
				"to": "0xtest",
				"value": "1000000000000000000",
				"blockNumber": "19000000",
				"timeStamp": "1700000000",
				"confirmations": "100",
				"isError": "0"
			},
			{
				"hash": "0xcc02",
				"from": "0xsender",
				"to": "0xtest",
				"value": "5",
				"blockNumber": "19000001",
				"timeStamp": "1700000100",
				"confirmations": "99",
				"isError": "1"
			}
		]}`))
	}))
	defer server.Close()

	p := NewEtherscanProvider(server.URL, "", testTimeout)
	txs, err := p.GetTransactions(context.Background(), "0xtest", 50)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Amount.String() != "1000000000000000000" {
		t.Errorf("amount = %s, want 1000000000000000000", txs[0].Amount)
	}
	if txs[0].Status != TxConfirmed {
		t.Errorf("status = %s, want CONFIRMED", txs[0].Status)
	}
	if txs[1].Status != TxFailed {
		t.Errorf("reverted tx status = %s, want FAILED", txs[1].Status)
	}
}

func TestEtherscanTokenAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("action"); got != "tokentx" {
			t.Errorf("action = %s, want tokentx", got)
		}
		if got := q.Get("contractaddress"); got != "0xdAC17F958D2ee523a2206206994597C13D831ec7" {
			t.Errorf("contractaddress = %s", got)
		}
		w.Write([]byte(`{"status": "1", "message": "OK", "result": []}`))
	}))
	defer server.Close()

	p := NewEtherscanTokenProvider(server.URL, "", "0xdAC17F958D2ee523a2206206994597C13D831ec7", testTimeout)
	if _, err := p.GetTransactions(context.Background(), "0xtest", 50); err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
}

func TestEtherscanRateLimitBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "0", "message": "NOTOK, rate limit reached", "result": "Max rate limit reached"}`))
	}))
	defer server.Close()

	p := NewEtherscanProvider(server.URL, "", testTimeout)
	if _, err := p.GetTransactions(context.Background(), "0xtest", 50); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestEtherscanNoTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": "No transactions found"}`))
	}))
	defer server.Close()

	p := NewEtherscanProvider(server.URL, "", testTimeout)
	txs, err := p.GetTransactions(context.Background(), "0xtest", 50)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("got %d transactions, want 0", len(txs))
	}
}

func TestCoinGeckoGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids = %s, want bitcoin", got)
		}
		w.Write([]byte(`{"bitcoin": {"usd": 91234.56}}`))
	}))
	defer server.Close()

	p := NewCoinGeckoProvider(server.URL, testTimeout)
	price, err := p.GetPriceUSD(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("GetPriceUSD: %v", err)
	}
	if price != 91234.56 {
		t.Errorf("price = %f, want 91234.56", price)
	}
}

func TestCoinGeckoMissingAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p := NewCoinGeckoProvider(server.URL, testTimeout)
	if _, err := p.GetPriceUSD(context.Background(), "bitcoin"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

// fakeEthRPC answers the minimal JSON-RPC surface ethclient needs.
func fakeEthRPC(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method: %s", req.Method)
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"` + result + `"}`))
	}))
}

func TestEthProviderGetBalance(t *testing.T) {
	server := fakeEthRPC(t, map[string]string{
		"eth_getBalance":          "0xde0b6b3a7640000", // 1 ETH in wei
		"eth_getTransactionCount": "0x5",
	})
	defer server.Close()

	p, err := NewEthProvider(server.URL)
	if err != nil {
		t.Fatalf("NewEthProvider: %v", err)
	}
	defer p.Close()

	balance, err := p.GetBalance(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.BaseUnits.String() != "1000000000000000000" {
		t.Errorf("balance = %s, want 1000000000000000000", balance.BaseUnits)
	}
	if balance.TxCount != 5 {
		t.Errorf("tx count = %d, want 5", balance.TxCount)
	}
}

func TestTokenProviderGetBalance(t *testing.T) {
	// eth_call returns the uint256 balanceOf result, ABI encoded.
	server := fakeEthRPC(t, map[string]string{
		"eth_call": "0x00000000000000000000000000000000000000000000000000000000000f4240",
	})
	defer server.Close()

	p, err := NewTokenProvider(server.URL, "0xdAC17F958D2ee523a2206206994597C13D831ec7")
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	defer p.Close()

	balance, err := p.GetBalance(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	// 1,000,000 base units = 1 USDT at 6 decimals.
	if balance.BaseUnits.Int64() != 1000000 {
		t.Errorf("balance = %s, want 1000000", balance.BaseUnits)
	}
}

func TestEthProviderRejectsBadAddress(t *testing.T) {
	server := fakeEthRPC(t, map[string]string{})
	defer server.Close()

	p, err := NewEthProvider(server.URL)
	if err != nil {
		t.Fatalf("NewEthProvider: %v", err)
	}
	defer p.Close()

	if _, err := p.GetBalance(context.Background(), "not-an-address"); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
