package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CoinGeckoProvider fetches USD spot prices from the CoinGecko simple price
// API. Asset IDs are CoinGecko slugs ("bitcoin", "ethereum", "tether").
type CoinGeckoProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGeckoProvider creates a CoinGecko price provider.
func NewCoinGeckoProvider(baseURL string, timeout time.Duration) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name for logging.
func (c *CoinGeckoProvider) Name() string {
	return "coingecko"
}

// GetPriceUSD returns the current USD price for an asset.
func (c *CoinGeckoProvider) GetPriceUSD(ctx context.Context, assetID string) (float64, error) {
	params := url.Values{}
	params.Set("ids", assetID)
	params.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/simple/price?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, ErrRateLimited
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	price, ok := result[assetID]["usd"]
	if !ok {
		return 0, fmt.Errorf("%w: no usd price for %s", ErrMalformed, assetID)
	}
	return price, nil
}

var _ PriceProvider = (*CoinGeckoProvider)(nil)
