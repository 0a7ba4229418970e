// Package limitless provides a REST client for the Limitless exchange public
// market data API and its polling feed adapter.
package limitless

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Orderbook is the Limitless orderbook payload. Prices are decimal strings in
// [0,1]; sizes are share counts in decimal strings.
type Orderbook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// Level is a single price level.
type Level struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Client is the REST client for the Limitless public API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Limitless REST client.
//
// baseURL is the API root, e.g. "https://api.limitless.exchange".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetOrderbook returns the current YES orderbook for a market pair.
func (c *Client) GetOrderbook(ctx context.Context, pairID string) (Orderbook, error) {
	fullURL := fmt.Sprintf("%s/markets/%s/orderbook", c.baseURL, url.PathEscape(pairID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Orderbook{}, fmt.Errorf("limitless: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Orderbook{}, fmt.Errorf("limitless: get orderbook %s: %w", pairID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Orderbook{}, fmt.Errorf("limitless: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Orderbook{}, fmt.Errorf("limitless: orderbook %s: HTTP %d: %s", pairID, resp.StatusCode, body)
	}

	var ob Orderbook
	if err := json.Unmarshal(body, &ob); err != nil {
		return Orderbook{}, fmt.Errorf("limitless: decode orderbook: %w", err)
	}

	return ob, nil
}
