// Package price fetches the Aleo market price and keeps a short history for
// display.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

const (
	coingeckoAPI = "https://api.coingecko.com/api/v3"
	coinID       = "aleo"
)

// CoinGeckoClient client for the CoinGecko API.
type CoinGeckoClient struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoClient creates a new CoinGecko client.
func NewCoinGeckoClient() *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL: coingeckoAPI,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type simplePriceResponse struct {
	Aleo struct {
		USD float64 `json:"usd"`
	} `json:"aleo"`
}

// USDPrice fetches the current Aleo price in USD.
func (c *CoinGeckoClient) USDPrice(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, coinID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get price: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: failed to get price: status %d", model.ErrTransport, resp.StatusCode)
	}

	var priceResp simplePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&priceResp); err != nil {
		return 0, fmt.Errorf("%w: failed to decode price: %v", model.ErrTransport, err)
	}
	if priceResp.Aleo.USD <= 0 {
		return 0, fmt.Errorf("%w: price feed returned no quote", model.ErrTransport)
	}
	return priceResp.Aleo.USD, nil
}
