// Package engine implements arbitrage detection over book-store snapshots and
// the lifecycle of detected opportunities. The engine is purely functional
// over each snapshot; all state it keeps (active set, historical log) is owned
// by the single scan goroutine, so no locking is needed.
package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Config holds the detection thresholds. All values are plain numbers; the
// TOML layer maps onto this.
type Config struct {
	// VenueFees maps venue name to its taker fee rate (fraction of notional).
	VenueFees map[string]float64

	// InternalThreshold is the margin the YES+NO bid sum must exceed 1.0 by
	// before an internal opportunity triggers. Compensates for fees and
	// quoting noise.
	InternalThreshold float64

	// Cross-venue qualification gates.
	MinProfitPercent float64
	MinDollarProfit  float64
	MinVolumeFloor   float64

	// MinSafeDenominator floors the profit-percent divisor so a near-zero
	// buy price cannot blow the ratio up.
	MinSafeDenominator float64
}

// DefaultConfig returns the thresholds used when the config file leaves them
// unset.
func DefaultConfig() Config {
	return Config{
		InternalThreshold:  0.003,
		MinProfitPercent:   0.02,
		MinDollarProfit:    1.0,
		MinVolumeFloor:     0,
		MinSafeDenominator: 0.01,
	}
}

// ScanResult is the outcome of one scan cycle.
type ScanResult struct {
	At time.Time

	// Opportunities is every signal clearing threshold this scan, sorted by
	// NetProfitTotal descending.
	Opportunities []domain.Opportunity

	// Lifecycle deltas relative to the previous scan.
	New       []domain.Opportunity
	Refreshed []domain.Opportunity
	Expired   []domain.Opportunity
}

// Engine runs detection formulas over snapshots and reconciles the active
// opportunity set. Not safe for concurrent use; it is driven by one scan
// loop.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	active   map[string]domain.Opportunity
	history  []domain.Opportunity
	lastScan []domain.Opportunity

	newID func() string
}

// New creates an Engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinSafeDenominator <= 0 {
		cfg.MinSafeDenominator = DefaultConfig().MinSafeDenominator
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_engine")),
		active: make(map[string]domain.Opportunity),
		newID:  uuid.NewString,
	}
}

// Scan evaluates both formulas for every market in the snapshot and
// reconciles the results against the active set: signals seen again are
// refreshed in place, new ones are inserted, and active entries the snapshot
// no longer confirms (including those whose venue data went missing) expire
// immediately and move to the historical log.
func (e *Engine) Scan(now time.Time, snap domain.Snapshot) ScanResult {
	current := make(map[string]domain.Opportunity)

	for _, key := range sortedKeys(snap.Markets) {
		market := snap.Markets[key]
		venues := sortedVenues(market.Venues)

		for _, venue := range venues {
			if opp, ok := e.detectInternal(key, venue, market.Venues[venue]); ok {
				current[opp.TrackingKey()] = opp
			}
		}

		// Cross-venue: both directions of every ordered pair.
		for _, buy := range venues {
			for _, sell := range venues {
				if buy == sell {
					continue
				}
				opp, ok := e.detectCrossVenue(key, buy, sell, market.Venues[buy], market.Venues[sell])
				if ok {
					current[opp.TrackingKey()] = opp
				}
			}
		}
	}

	res := e.reconcile(now, current)
	e.lastScan = res.Opportunities
	return res
}

// detectInternal checks whether selling YES and NO on the same venue locks in
// more than $1 per share pair, after the round-trip fee on both legs.
func (e *Engine) detectInternal(key domain.MarketKey, venue string, vb domain.VenueBook) (domain.Opportunity, bool) {
	yesBid, okYes := vb.Yes.BestBid()
	noBid, okNo := vb.No.BestBid()
	if !okYes || !okNo {
		return domain.Opportunity{}, false
	}

	sum := yesBid.Price + noBid.Price
	if sum <= 1.0+e.cfg.InternalThreshold {
		return domain.Opportunity{}, false
	}

	fee := e.cfg.VenueFees[venue]
	edge := sum - 1.0
	feeCost := 1.0 * fee * 2
	net := edge - feeCost
	maxVolume := minf(yesBid.Size, noBid.Size)

	return domain.Opportunity{
		MarketKey:         key,
		Kind:              domain.OpportunityInternal,
		Venue:             venue,
		YesBid:            yesBid.Price,
		NoBid:             noBid.Price,
		GrossEdge:         edge,
		FeeCost:           feeCost,
		NetProfitPerShare: net,
		MaxVolume:         maxVolume,
		NetProfitTotal:    net * maxVolume,
		ProfitPercent:     net, // per $1 of settled notional
		Status:            domain.OpportunityActive,
	}, true
}

// detectCrossVenue checks buying YES on buyVenue and selling it on sellVenue.
// Every gate must pass: positive net per share, profit percent, dollar
// profit, and executable volume.
func (e *Engine) detectCrossVenue(key domain.MarketKey, buyVenue, sellVenue string, buyBook, sellBook domain.VenueBook) (domain.Opportunity, bool) {
	buyAsk, okBuy := buyBook.Yes.BestAsk()
	sellBid, okSell := sellBook.Yes.BestBid()
	if !okBuy || !okSell {
		return domain.Opportunity{}, false
	}

	gross := sellBid.Price - buyAsk.Price
	feeCost := buyAsk.Price*e.cfg.VenueFees[buyVenue] + sellBid.Price*e.cfg.VenueFees[sellVenue]
	net := gross - feeCost
	if net <= 0 {
		return domain.Opportunity{}, false
	}

	denom := maxf(buyAsk.Price, e.cfg.MinSafeDenominator)
	profitPercent := net / denom
	maxVolume := minf(buyAsk.Size, sellBid.Size)
	netTotal := net * maxVolume

	if profitPercent < e.cfg.MinProfitPercent ||
		netTotal < e.cfg.MinDollarProfit ||
		maxVolume <= e.cfg.MinVolumeFloor {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		MarketKey:         key,
		Kind:              domain.OpportunityCrossVenue,
		BuyVenue:          buyVenue,
		SellVenue:         sellVenue,
		BuyAsk:            buyAsk.Price,
		SellBid:           sellBid.Price,
		GrossEdge:         gross,
		FeeCost:           feeCost,
		NetProfitPerShare: net,
		MaxVolume:         maxVolume,
		NetProfitTotal:    netTotal,
		ProfitPercent:     profitPercent,
		Status:            domain.OpportunityActive,
	}, true
}

// reconcile merges this scan's qualifying set into the active set and expires
// everything no longer confirmed.
func (e *Engine) reconcile(now time.Time, current map[string]domain.Opportunity) ScanResult {
	res := ScanResult{At: now}

	for trackKey, opp := range current {
		if prev, ok := e.active[trackKey]; ok {
			// Refresh in place: identity and discovery time survive.
			opp.ID = prev.ID
			opp.DiscoveredAt = prev.DiscoveredAt
			e.active[trackKey] = opp
			res.Refreshed = append(res.Refreshed, opp)
			continue
		}
		opp.ID = e.newID()
		opp.DiscoveredAt = now
		e.active[trackKey] = opp
		res.New = append(res.New, opp)
		e.logger.Info("opportunity discovered",
			slog.String("id", opp.ID),
			slog.String("market", string(opp.MarketKey)),
			slog.String("kind", string(opp.Kind)),
			slog.Float64("net_profit_total", opp.NetProfitTotal),
		)
	}

	for trackKey, opp := range e.active {
		if _, stillThere := current[trackKey]; stillThere {
			continue
		}
		expiredAt := now
		opp.Status = domain.OpportunityExpired
		opp.ExpiredAt = &expiredAt
		opp.DurationSeconds = now.Sub(opp.DiscoveredAt).Seconds()
		e.history = append(e.history, opp)
		res.Expired = append(res.Expired, opp)
		delete(e.active, trackKey)
		e.logger.Info("opportunity expired",
			slog.String("id", opp.ID),
			slog.String("market", string(opp.MarketKey)),
			slog.Float64("duration_seconds", opp.DurationSeconds),
		)
	}

	res.Opportunities = make([]domain.Opportunity, 0, len(e.active))
	for _, opp := range e.active {
		res.Opportunities = append(res.Opportunities, opp)
	}
	sortByNetProfit(res.Opportunities)
	sortByNetProfit(res.New)
	sortByNetProfit(res.Refreshed)
	return res
}

// CurrentScanResults returns the latest scan's qualifying opportunities,
// sorted by absolute dollar profit descending.
func (e *Engine) CurrentScanResults() []domain.Opportunity {
	out := make([]domain.Opportunity, len(e.lastScan))
	copy(out, e.lastScan)
	return out
}

// HistoricalLog returns the append-only log of expired opportunities.
func (e *Engine) HistoricalLog() []domain.Opportunity {
	out := make([]domain.Opportunity, len(e.history))
	copy(out, e.history)
	return out
}

// ActiveCount reports how many opportunities are currently confirmed.
func (e *Engine) ActiveCount() int {
	return len(e.active)
}

func sortByNetProfit(opps []domain.Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].NetProfitTotal != opps[j].NetProfitTotal {
			return opps[i].NetProfitTotal > opps[j].NetProfitTotal
		}
		return opps[i].TrackingKey() < opps[j].TrackingKey()
	})
}

func sortedKeys(m map[domain.MarketKey]domain.MarketSnapshot) []domain.MarketKey {
	keys := make([]domain.MarketKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedVenues(m map[string]domain.VenueBook) []string {
	venues := make([]string, 0, len(m))
	for v := range m {
		venues = append(venues, v)
	}
	sort.Strings(venues)
	return venues
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
