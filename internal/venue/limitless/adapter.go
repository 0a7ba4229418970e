package limitless

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/arbwatch/internal/aggregate"
	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Adapter polls Limitless orderbooks. Limitless exposes one book per market
// pair, quoting the YES outcome; the pair ID itself is the instrument ID.
type Adapter struct {
	client  *Client
	pairIDs []string
}

var _ aggregate.FeedAdapter = (*Adapter)(nil)

// NewAdapter creates an Adapter that polls the given market pairs.
func NewAdapter(client *Client, pairIDs []string) *Adapter {
	return &Adapter{client: client, pairIDs: pairIDs}
}

// Venue implements aggregate.FeedAdapter.
func (a *Adapter) Venue() string { return "limitless" }

// PullRawOrderBooks fetches every configured pair's YES book. Prices arrive
// already as [0,1] decimal strings and pass through untouched.
func (a *Adapter) PullRawOrderBooks(ctx context.Context) (map[string]domain.RawBook, error) {
	books := make(map[string]domain.RawBook, len(a.pairIDs))
	for _, pairID := range a.pairIDs {
		ob, err := a.client.GetOrderbook(ctx, pairID)
		if err != nil {
			return nil, fmt.Errorf("limitless adapter: pull %s: %w", pairID, err)
		}
		books[pairID] = domain.RawBook{
			Bids: rawLevels(ob.Bids),
			Asks: rawLevels(ob.Asks),
		}
	}
	return books, nil
}

func rawLevels(levels []Level) []domain.RawLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]domain.RawLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, domain.RawLevel{Price: lvl.Price, Size: lvl.Size})
	}
	return out
}
