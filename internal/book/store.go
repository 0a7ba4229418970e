// Package book holds the single source of truth for normalized per-venue
// order books. One writer goroutine per venue feed calls ApplyRawUpdate; the
// scan loop reads consistent cross-sections via Snapshot.
package book

import (
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Store keeps the latest normalized VenueBook per (venue, market). The mutex
// is held only for O(1) map swaps and the snapshot copy, never across
// parsing or network work.
type Store struct {
	logger *slog.Logger

	mu        sync.RWMutex
	books     map[string]map[domain.MarketKey]domain.VenueBook
	refreshed map[string]time.Time

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:    logger.With(slog.String("component", "book_store")),
		books:     make(map[string]map[domain.MarketKey]domain.VenueBook),
		refreshed: make(map[string]time.Time),
		now:       time.Now,
	}
}

// ApplyRawUpdate normalizes the raw books and replaces the venue's entire
// stored book set in one step, so the store never mixes two feed generations
// for the same venue. Markets the venue stopped supplying disappear from its
// view. Malformed levels are dropped individually with a warning; a market
// whose books are all empty is still valid ("no liquidity").
func (s *Store) ApplyRawUpdate(venue string, raw map[domain.MarketKey]domain.RawVenueBook) {
	// Parse and sort outside the lock.
	normalized := make(map[domain.MarketKey]domain.VenueBook, len(raw))
	for key, rvb := range raw {
		if rvb.Yes == nil && rvb.No == nil {
			// No data for either outcome yet: leave the venue absent for
			// this market rather than storing a zeroed book.
			continue
		}
		vb := domain.VenueBook{}
		if rvb.Yes != nil {
			vb.Yes = s.normalizeBook(venue, key, domain.OutcomeYes, *rvb.Yes)
		}
		if rvb.No != nil {
			vb.No = s.normalizeBook(venue, key, domain.OutcomeNo, *rvb.No)
		}
		normalized[key] = vb
	}

	s.mu.Lock()
	s.books[venue] = normalized
	s.refreshed[venue] = s.now()
	s.mu.Unlock()
}

// Snapshot deep-copies the current state under a single read lock and returns
// a self-consistent cross-section of every known market. Repeated calls with
// no intervening writes yield identical snapshots.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{
		TakenAt: s.now(),
		Markets: make(map[domain.MarketKey]domain.MarketSnapshot),
	}
	for venue, markets := range s.books {
		for key, vb := range markets {
			ms, ok := snap.Markets[key]
			if !ok {
				ms = domain.MarketSnapshot{
					Key:    key,
					Venues: make(map[string]domain.VenueBook),
				}
			}
			ms.Venues[venue] = copyVenueBook(vb)
			snap.Markets[key] = ms
		}
	}
	return snap
}

// LastRefreshed returns when a venue's books were last replaced.
func (s *Store) LastRefreshed(venue string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.refreshed[venue]
	return t, ok
}

// VenueBooks returns a copy of one venue's current book set, used by the book
// mirror.
func (s *Store) VenueBooks(venue string) map[domain.MarketKey]domain.VenueBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	markets, ok := s.books[venue]
	if !ok {
		return nil
	}
	out := make(map[domain.MarketKey]domain.VenueBook, len(markets))
	for key, vb := range markets {
		out[key] = copyVenueBook(vb)
	}
	return out
}

// normalizeBook parses one raw outcome book into sorted, deduplicated price
// levels. Duplicate prices are coalesced by summing sizes.
func (s *Store) normalizeBook(venue string, key domain.MarketKey, outcome domain.Outcome, raw domain.RawBook) domain.OutcomeBook {
	return domain.OutcomeBook{
		Bids: s.normalizeSide(venue, key, outcome, "bids", raw.Bids, true),
		Asks: s.normalizeSide(venue, key, outcome, "asks", raw.Asks, false),
	}
}

func (s *Store) normalizeSide(venue string, key domain.MarketKey, outcome domain.Outcome, side string, raw []domain.RawLevel, descending bool) []domain.PriceLevel {
	if len(raw) == 0 {
		return nil
	}

	bySize := make(map[float64]float64, len(raw))
	for _, lvl := range raw {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil || price < 0 || price > 1 {
			s.warnDropped(venue, key, outcome, side, lvl, "unparseable or out-of-range price")
			continue
		}
		size, err := strconv.ParseFloat(lvl.Size, 64)
		if err != nil || size < 0 {
			s.warnDropped(venue, key, outcome, side, lvl, "unparseable or negative size")
			continue
		}
		bySize[price] += size
	}
	if len(bySize) == 0 {
		return nil
	}

	levels := make([]domain.PriceLevel, 0, len(bySize))
	for price, size := range bySize {
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	return levels
}

func (s *Store) warnDropped(venue string, key domain.MarketKey, outcome domain.Outcome, side string, lvl domain.RawLevel, reason string) {
	s.logger.Warn("dropping malformed price level",
		slog.String("venue", venue),
		slog.String("market", string(key)),
		slog.String("outcome", string(outcome)),
		slog.String("side", side),
		slog.String("price", lvl.Price),
		slog.String("size", lvl.Size),
		slog.String("reason", reason),
	)
}

func copyVenueBook(vb domain.VenueBook) domain.VenueBook {
	return domain.VenueBook{
		Yes: copyOutcomeBook(vb.Yes),
		No:  copyOutcomeBook(vb.No),
	}
}

func copyOutcomeBook(b domain.OutcomeBook) domain.OutcomeBook {
	out := domain.OutcomeBook{}
	if len(b.Bids) > 0 {
		out.Bids = make([]domain.PriceLevel, len(b.Bids))
		copy(out.Bids, b.Bids)
	}
	if len(b.Asks) > 0 {
		out.Asks = make([]domain.PriceLevel, len(b.Asks))
		copy(out.Asks, b.Asks)
	}
	return out
}
