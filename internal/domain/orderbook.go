package domain

import "time"

// MarketKey is the canonical identifier for a real-world event, shared across
// venues. Venue-native instrument IDs (token IDs, tickers, pair IDs) are
// resolved to a MarketKey by the market registry.
type MarketKey string

// Outcome is one of the two complementary results of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// PriceLevel is a single price+size entry in an orderbook. Price is a
// probability in [0,1]; Size is the resting quantity at that price.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OutcomeBook holds one outcome's resting orders. Bids are strictly
// descending by price, asks strictly ascending, with unique prices on each
// side; the best level is always index 0. Empty sides are valid.
type OutcomeBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// BestBid returns the top bid level and whether one exists.
func (b OutcomeBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level and whether one exists.
func (b OutcomeBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Empty reports whether the book has no resting orders on either side.
func (b OutcomeBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// VenueBook is the pair of complementary outcome books for one market on one
// venue. A venue that supplies only the YES side leaves No as an empty book;
// the NO side is never synthesized as 1-yes, so liquidity asymmetries stay
// visible.
type VenueBook struct {
	Yes OutcomeBook
	No  OutcomeBook
}

// MarketSnapshot is the fully merged point-in-time view of one market across
// every venue currently carrying it. Venue absence means "no data yet", which
// is distinct from a present-but-empty VenueBook.
type MarketSnapshot struct {
	Key    MarketKey
	Venues map[string]VenueBook
}

// Snapshot is a consistent cross-section of all known markets, produced
// atomically by the book store. No market mixes venue data from two
// different refresh generations.
type Snapshot struct {
	TakenAt time.Time
	Markets map[MarketKey]MarketSnapshot
}

// Market returns the snapshot for one market and whether it exists.
func (s Snapshot) Market(key MarketKey) (MarketSnapshot, bool) {
	m, ok := s.Markets[key]
	return m, ok
}

// RawLevel is a venue-native price/size pair before normalization. Values are
// kept as strings because venues disagree on representation (decimal strings,
// cents, floats); parsing and validation happen in the book store, which
// drops unparseable levels individually.
type RawLevel struct {
	Price string
	Size  string
}

// RawBook is one instrument's raw order book as pulled from a venue feed
// adapter.
type RawBook struct {
	Bids []RawLevel
	Asks []RawLevel
}

// RawVenueBook pairs the raw YES and NO books for one market from one venue.
// A nil side means the feed has no data for that outcome yet.
type RawVenueBook struct {
	Yes *RawBook
	No  *RawBook
}
