package kalshi

import "time"

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API, trimmed to
// the fields the watcher reads.
type Market struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	YesBid         float64 `json:"yes_bid"`
	YesAsk         float64 `json:"yes_ask"`
	NoBid          float64 `json:"no_bid"`
	NoAsk          float64 `json:"no_ask"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	ExpirationTime string  `json:"expiration_time"`
	CloseTime      string  `json:"close_time"`
}

// Orderbook represents the orderbook for a Kalshi market. Kalshi publishes
// resting bids for both outcomes; asks are implied by the opposite side.
type Orderbook struct {
	Ticker    string       `json:"ticker"`
	YesBids   []PriceLevel `json:"yes"`
	NoBids    []PriceLevel `json:"no"`
	Timestamp time.Time    `json:"-"`
}

// PriceLevel is a single price+quantity entry in the Kalshi orderbook.
type PriceLevel struct {
	Price    int64 `json:"price"`    // in cents (1-99)
	Quantity int64 `json:"quantity"` // number of contracts
}

// ErrorResponse represents a Kalshi API error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
