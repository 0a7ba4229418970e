package kalshi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/aggregate"
	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// YesInstrument and NoInstrument build the per-outcome instrument IDs used
// for a Kalshi ticker. Kalshi identifies a market by one ticker; the two
// outcome books are split into "<ticker>/yes" and "<ticker>/no" so they can
// be resolved like any other venue's instruments.
func YesInstrument(ticker string) string { return ticker + "/yes" }
func NoInstrument(ticker string) string  { return ticker + "/no" }

// Adapter polls Kalshi orderbooks and converts them to raw book updates.
type Adapter struct {
	client  *Client
	tickers []string
}

var _ aggregate.FeedAdapter = (*Adapter)(nil)

// NewAdapter creates an Adapter that polls the given market tickers.
func NewAdapter(client *Client, tickers []string) *Adapter {
	return &Adapter{client: client, tickers: tickers}
}

// Venue implements aggregate.FeedAdapter.
func (a *Adapter) Venue() string { return "kalshi" }

// PullRawOrderBooks fetches every configured ticker's orderbook. Kalshi
// quotes in cents and only publishes resting bids per outcome; asks are
// derived from the opposite outcome's bids (buying YES at p fills against a
// NO bid at 1-p). Prices are converted to [0,1] probabilities here since that
// is venue wire semantics, not normalization.
func (a *Adapter) PullRawOrderBooks(ctx context.Context) (map[string]domain.RawBook, error) {
	books := make(map[string]domain.RawBook, len(a.tickers)*2)
	for _, ticker := range a.tickers {
		ob, err := a.client.GetOrderbook(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("kalshi adapter: pull %s: %w", ticker, err)
		}

		books[YesInstrument(ticker)] = domain.RawBook{
			Bids: centsLevels(ob.YesBids, false),
			Asks: centsLevels(ob.NoBids, true),
		}
		books[NoInstrument(ticker)] = domain.RawBook{
			Bids: centsLevels(ob.NoBids, false),
			Asks: centsLevels(ob.YesBids, true),
		}
	}
	return books, nil
}

// TickerOf recovers the market ticker from a split instrument ID.
func TickerOf(instrumentID string) string {
	if i := strings.LastIndexByte(instrumentID, '/'); i >= 0 {
		return instrumentID[:i]
	}
	return instrumentID
}

// centsLevels converts cent-denominated levels to probability strings.
// complement flips each price to 1-p, used when deriving one outcome's asks
// from the other outcome's bids.
func centsLevels(levels []PriceLevel, complement bool) []domain.RawLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]domain.RawLevel, 0, len(levels))
	for _, lvl := range levels {
		cents := lvl.Price
		if complement {
			cents = 100 - cents
		}
		out = append(out, domain.RawLevel{
			Price: fmt.Sprintf("%.2f", float64(cents)/100),
			Size:  strconv.FormatInt(lvl.Quantity, 10),
		})
	}
	return out
}
