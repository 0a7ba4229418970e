package book

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func rawBook(bids, asks [][2]string) *domain.RawBook {
	rb := &domain.RawBook{}
	for _, b := range bids {
		rb.Bids = append(rb.Bids, domain.RawLevel{Price: b[0], Size: b[1]})
	}
	for _, a := range asks {
		rb.Asks = append(rb.Asks, domain.RawLevel{Price: a[0], Size: a[1]})
	}
	return rb
}

func TestStore_ApplyRawUpdate_SortsAndDedupes(t *testing.T) {
	s := NewStore(nil)

	s.ApplyRawUpdate("polymarket", map[domain.MarketKey]domain.RawVenueBook{
		"us-recession-2025": {
			Yes: rawBook(
				[][2]string{{"0.70", "100"}, {"0.72", "50"}, {"0.70", "25"}, {"0.65", "10"}},
				[][2]string{{"0.80", "30"}, {"0.75", "40"}, {"0.75", "60"}},
			),
		},
	})

	snap := s.Snapshot()
	market, ok := snap.Market("us-recession-2025")
	require.True(t, ok)
	vb, ok := market.Venues["polymarket"]
	require.True(t, ok)

	// Bids strictly descending, duplicate 0.70 coalesced.
	require.Len(t, vb.Yes.Bids, 3)
	assert.Equal(t, domain.PriceLevel{Price: 0.72, Size: 50}, vb.Yes.Bids[0])
	assert.Equal(t, domain.PriceLevel{Price: 0.70, Size: 125}, vb.Yes.Bids[1])
	assert.Equal(t, domain.PriceLevel{Price: 0.65, Size: 10}, vb.Yes.Bids[2])

	// Asks strictly ascending, duplicate 0.75 coalesced.
	require.Len(t, vb.Yes.Asks, 2)
	assert.Equal(t, domain.PriceLevel{Price: 0.75, Size: 100}, vb.Yes.Asks[0])
	assert.Equal(t, domain.PriceLevel{Price: 0.80, Size: 30}, vb.Yes.Asks[1])

	// No NO data was supplied: side stays empty, never synthesized.
	assert.True(t, vb.No.Empty())
}

func TestStore_ApplyRawUpdate_DropsMalformedLevels(t *testing.T) {
	s := NewStore(nil)

	s.ApplyRawUpdate("kalshi", map[domain.MarketKey]domain.RawVenueBook{
		"fed-cut-march": {
			Yes: rawBook(
				[][2]string{{"0.40", "100"}, {"not-a-price", "50"}, {"1.7", "10"}, {"0.38", "-5"}},
				[][2]string{{"0.45", "bad-size"}, {"0.46", "20"}},
			),
		},
	})

	snap := s.Snapshot()
	vb := snap.Markets["fed-cut-march"].Venues["kalshi"]

	// Only the one well-formed bid survives; the rest of the update is kept.
	require.Len(t, vb.Yes.Bids, 1)
	assert.Equal(t, 0.40, vb.Yes.Bids[0].Price)
	require.Len(t, vb.Yes.Asks, 1)
	assert.Equal(t, 0.46, vb.Yes.Asks[0].Price)
}

func TestStore_ApplyRawUpdate_ReplacesWholeVenue(t *testing.T) {
	s := NewStore(nil)

	s.ApplyRawUpdate("limitless", map[domain.MarketKey]domain.RawVenueBook{
		"mkt-a": {Yes: rawBook([][2]string{{"0.50", "10"}}, nil)},
		"mkt-b": {Yes: rawBook([][2]string{{"0.30", "10"}}, nil)},
	})
	s.ApplyRawUpdate("limitless", map[domain.MarketKey]domain.RawVenueBook{
		"mkt-a": {Yes: rawBook([][2]string{{"0.55", "20"}}, nil)},
	})

	snap := s.Snapshot()
	require.Contains(t, snap.Markets, domain.MarketKey("mkt-a"))
	assert.NotContains(t, snap.Markets, domain.MarketKey("mkt-b"),
		"market dropped by the feed must disappear, not go stale")
	assert.Equal(t, 0.55, snap.Markets["mkt-a"].Venues["limitless"].Yes.Bids[0].Price)
}

func TestStore_AbsentBookDistinctFromEmpty(t *testing.T) {
	s := NewStore(nil)

	s.ApplyRawUpdate("polymarket", map[domain.MarketKey]domain.RawVenueBook{
		"no-data-yet":  {},                               // neither outcome present
		"no-liquidity": {Yes: &domain.RawBook{}, No: &domain.RawBook{}}, // present but empty
	})

	snap := s.Snapshot()
	assert.NotContains(t, snap.Markets, domain.MarketKey("no-data-yet"))

	vb, ok := snap.Markets["no-liquidity"].Venues["polymarket"]
	require.True(t, ok)
	assert.True(t, vb.Yes.Empty())
	assert.True(t, vb.No.Empty())
}

func TestStore_Snapshot_Idempotent(t *testing.T) {
	s := NewStore(nil)
	s.ApplyRawUpdate("kalshi", map[domain.MarketKey]domain.RawVenueBook{
		"mkt": {
			Yes: rawBook([][2]string{{"0.60", "100"}, {"0.59", "50"}}, [][2]string{{"0.62", "80"}}),
			No:  rawBook([][2]string{{"0.39", "70"}}, [][2]string{{"0.41", "60"}}),
		},
	})

	a := s.Snapshot()
	b := s.Snapshot()
	assert.Equal(t, a.Markets, b.Markets)
}

func TestStore_Snapshot_IsDeepCopy(t *testing.T) {
	s := NewStore(nil)
	s.ApplyRawUpdate("kalshi", map[domain.MarketKey]domain.RawVenueBook{
		"mkt": {Yes: rawBook([][2]string{{"0.60", "100"}}, nil)},
	})

	snap := s.Snapshot()
	snap.Markets["mkt"].Venues["kalshi"].Yes.Bids[0] = domain.PriceLevel{Price: 0.99, Size: 1}

	again := s.Snapshot()
	assert.Equal(t, 0.60, again.Markets["mkt"].Venues["kalshi"].Yes.Bids[0].Price)
}

// TestStore_NoTornReads hammers the store with whole-book generations where
// every level carries the generation's price; any snapshot mixing prices
// would reveal a torn write.
func TestStore_NoTornReads(t *testing.T) {
	s := NewStore(nil)

	const (
		writers    = 2
		iterations = 500
		levels     = 8
	)

	var writerWg sync.WaitGroup
	writersDone := make(chan struct{})

	for w := 0; w < writers; w++ {
		venue := fmt.Sprintf("venue-%d", w)
		writerWg.Add(1)
		go func() {
			defer writerWg.Done()
			for i := 0; i < iterations; i++ {
				gen := 0.10
				if i%2 == 1 {
					gen = 0.90
				}
				raw := &domain.RawBook{}
				for l := 0; l < levels; l++ {
					// Same price repeated would coalesce, so stagger within
					// the generation's band.
					p := gen - float64(l)*0.001
					raw.Bids = append(raw.Bids, domain.RawLevel{
						Price: fmt.Sprintf("%.3f", p),
						Size:  "1",
					})
				}
				s.ApplyRawUpdate(venue, map[domain.MarketKey]domain.RawVenueBook{
					"mkt": {Yes: raw},
				})
			}
		}()
	}

	go func() {
		writerWg.Wait()
		close(writersDone)
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-writersDone:
				return
			default:
			}
			snap := s.Snapshot()
			m, ok := snap.Market("mkt")
			if !ok {
				continue
			}
			for venue, vb := range m.Venues {
				if len(vb.Yes.Bids) == 0 {
					continue
				}
				low := vb.Yes.Bids[0].Price < 0.5
				for _, lvl := range vb.Yes.Bids {
					if (lvl.Price < 0.5) != low {
						t.Errorf("torn read on %s: mixed generations in %v", venue, vb.Yes.Bids)
						return
					}
				}
			}
		}
	}()

	<-writersDone
	<-readerDone
}
