package polymarket

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/arbwatch/internal/aggregate"
	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Adapter is the push feed adapter for Polymarket. The WebSocket delivers
// full book snapshots followed by incremental price changes; the adapter
// maintains the latest book per asset in wire form and serves it from
// PullRawOrderBooks.
type Adapter struct {
	ws       *WSClient
	assetIDs []string

	mu    sync.RWMutex
	books map[string]*liveBook
}

// liveBook is one asset's current book, price string -> size string.
type liveBook struct {
	bids map[string]string
	asks map[string]string
}

var _ aggregate.FeedAdapter = (*Adapter)(nil)

// NewAdapter creates an Adapter for the given CLOB token IDs.
func NewAdapter(ws *WSClient, assetIDs []string) *Adapter {
	return &Adapter{
		ws:       ws,
		assetIDs: assetIDs,
		books:    make(map[string]*liveBook),
	}
}

// Start connects the WebSocket and subscribes to book and price change
// events for the configured assets.
func (a *Adapter) Start(ctx context.Context) error {
	a.ws.OnBook(a.applyBook)
	a.ws.OnPriceChange(a.applyPriceChange)

	if err := a.ws.Connect(ctx); err != nil {
		return fmt.Errorf("polymarket adapter: %w", err)
	}
	if err := a.ws.Subscribe(ctx, []string{"book", "price_change"}, a.assetIDs); err != nil {
		return fmt.Errorf("polymarket adapter: %w", err)
	}
	return nil
}

// Close shuts down the WebSocket connection.
func (a *Adapter) Close() error {
	return a.ws.Close()
}

// Venue implements aggregate.FeedAdapter.
func (a *Adapter) Venue() string { return "polymarket" }

// PullRawOrderBooks returns the latest buffered book per asset. Assets that
// have not delivered their first snapshot yet are omitted.
func (a *Adapter) PullRawOrderBooks(context.Context) (map[string]domain.RawBook, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]domain.RawBook, len(a.books))
	for assetID, lb := range a.books {
		out[assetID] = domain.RawBook{
			Bids: rawLevels(lb.bids),
			Asks: rawLevels(lb.asks),
		}
	}
	return out, nil
}

// applyBook replaces an asset's book with a full snapshot.
func (a *Adapter) applyBook(msg BookMessage) {
	lb := &liveBook{
		bids: make(map[string]string, len(msg.Bids)),
		asks: make(map[string]string, len(msg.Asks)),
	}
	for _, lvl := range msg.Bids {
		lb.bids[lvl.Price] = lvl.Size
	}
	for _, lvl := range msg.Asks {
		lb.asks[lvl.Price] = lvl.Size
	}

	a.mu.Lock()
	a.books[msg.AssetID] = lb
	a.mu.Unlock()
}

// applyPriceChange upserts one price level. Changes arriving before the
// asset's first snapshot are dropped; the upcoming snapshot supersedes them.
func (a *Adapter) applyPriceChange(msg PriceChangeMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lb, ok := a.books[msg.AssetID]
	if !ok {
		return
	}

	side := lb.bids
	if msg.Side == "SELL" {
		side = lb.asks
	}
	if msg.Size == "0" {
		delete(side, msg.Price)
		return
	}
	side[msg.Price] = msg.Size
}

func rawLevels(side map[string]string) []domain.RawLevel {
	if len(side) == 0 {
		return nil
	}
	out := make([]domain.RawLevel, 0, len(side))
	for price, size := range side {
		out = append(out, domain.RawLevel{Price: price, Size: size})
	}
	return out
}
