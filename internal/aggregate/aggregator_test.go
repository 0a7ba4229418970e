package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/book"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/registry"
)

type fakeAdapter struct {
	venue string
	books map[string]domain.RawBook
	err   error
	pulls int
}

func (f *fakeAdapter) Venue() string { return f.venue }

func (f *fakeAdapter) PullRawOrderBooks(context.Context) (map[string]domain.RawBook, error) {
	f.pulls++
	return f.books, f.err
}

type recordingMirror struct {
	writes map[string]domain.VenueBook
	err    error
}

func (m *recordingMirror) SetVenueBook(_ context.Context, key domain.MarketKey, venue string, vb domain.VenueBook, _ time.Time) error {
	if m.writes == nil {
		m.writes = make(map[string]domain.VenueBook)
	}
	m.writes[string(key)+"/"+venue] = vb
	return m.err
}

func (m *recordingMirror) GetVenueBook(context.Context, domain.MarketKey, string) (domain.VenueBook, time.Time, error) {
	return domain.VenueBook{}, time.Time{}, errors.New("not implemented")
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.MarketSpec{
		{
			Key:      "us-recession-2025",
			Question: "US recession in 2025?",
			Venues: map[string]registry.VenueInstruments{
				"polymarket": {Yes: "1111", No: "2222"},
			},
		},
	})
	require.NoError(t, err)
	return reg
}

func TestAggregator_GroupsInstrumentsByMarket(t *testing.T) {
	store := book.NewStore(nil)
	adapter := &fakeAdapter{
		venue: "polymarket",
		books: map[string]domain.RawBook{
			"1111": {Bids: []domain.RawLevel{{Price: "0.60", Size: "100"}}},
			"2222": {Bids: []domain.RawLevel{{Price: "0.45", Size: "150"}}},
			"9999": {Bids: []domain.RawLevel{{Price: "0.99", Size: "1"}}}, // untracked
		},
	}
	a := New(DefaultConfig(), nil, testRegistry(t), store, nil, adapter)

	require.NoError(t, a.RefreshOnce(context.Background()))

	snap := store.Snapshot()
	require.Len(t, snap.Markets, 1, "untracked instruments must not create markets")
	vb := snap.Markets["us-recession-2025"].Venues["polymarket"]

	yesBid, ok := vb.Yes.BestBid()
	require.True(t, ok)
	assert.Equal(t, 0.60, yesBid.Price)

	noBid, ok := vb.No.BestBid()
	require.True(t, ok)
	assert.Equal(t, 0.45, noBid.Price)
}

func TestAggregator_PullErrorLeavesStoreUntouched(t *testing.T) {
	store := book.NewStore(nil)
	adapter := &fakeAdapter{
		venue: "polymarket",
		books: map[string]domain.RawBook{
			"1111": {Bids: []domain.RawLevel{{Price: "0.60", Size: "100"}}},
		},
	}
	a := New(DefaultConfig(), nil, testRegistry(t), store, nil, adapter)
	require.NoError(t, a.RefreshOnce(context.Background()))

	adapter.err = errors.New("venue unreachable")
	err := a.RefreshOnce(context.Background())
	require.Error(t, err)

	// Last good data survives a failed pull.
	snap := store.Snapshot()
	require.Contains(t, snap.Markets, domain.MarketKey("us-recession-2025"))
}

func TestAggregator_MirrorsAfterRefresh(t *testing.T) {
	store := book.NewStore(nil)
	mirror := &recordingMirror{}
	adapter := &fakeAdapter{
		venue: "polymarket",
		books: map[string]domain.RawBook{
			"1111": {Bids: []domain.RawLevel{{Price: "0.60", Size: "100"}}},
		},
	}
	a := New(DefaultConfig(), nil, testRegistry(t), store, mirror, adapter)

	require.NoError(t, a.RefreshOnce(context.Background()))
	require.Contains(t, mirror.writes, "us-recession-2025/polymarket")
	bid, ok := mirror.writes["us-recession-2025/polymarket"].Yes.BestBid()
	require.True(t, ok)
	assert.Equal(t, 0.60, bid.Price)
}

func TestAggregator_MirrorFailureIsNonFatal(t *testing.T) {
	store := book.NewStore(nil)
	mirror := &recordingMirror{err: errors.New("cache down")}
	adapter := &fakeAdapter{
		venue: "polymarket",
		books: map[string]domain.RawBook{
			"1111": {Bids: []domain.RawLevel{{Price: "0.60", Size: "100"}}},
		},
	}
	a := New(DefaultConfig(), nil, testRegistry(t), store, mirror, adapter)

	assert.NoError(t, a.RefreshOnce(context.Background()))
}

func TestAggregator_RunStopsOnCancel(t *testing.T) {
	store := book.NewStore(nil)
	adapter := &fakeAdapter{venue: "polymarket", books: map[string]domain.RawBook{}}
	cfg := Config{PollInterval: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}
	a := New(cfg, nil, testRegistry(t), store, nil, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, adapter.pulls, 2)
}
