package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
)

type staticBooks struct {
	snap domain.Snapshot
}

func (s *staticBooks) Snapshot() domain.Snapshot { return s.snap }

type fakeBus struct {
	published []Event
	streamed  int
}

func (b *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	b.published = append(b.published, ev)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error {
	b.streamed++
	return nil
}

type fakeHistory struct {
	inserted []domain.Opportunity
}

func (h *fakeHistory) Insert(_ context.Context, opp domain.Opportunity) error {
	h.inserted = append(h.inserted, opp)
	return nil
}

func (h *fakeHistory) ListRecent(context.Context, int) ([]domain.Opportunity, error) {
	return h.inserted, nil
}

func (h *fakeHistory) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}

func (h *fakeHistory) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeAlerter struct {
	events []string
}

func (a *fakeAlerter) NotifyOpportunity(_ context.Context, event string, _ domain.Opportunity) error {
	a.events = append(a.events, event)
	return nil
}

func TestRunner_ScanOnceFansOutLifecycle(t *testing.T) {
	books := &staticBooks{snap: snapshotOf(time.Now(), map[domain.MarketKey]map[string]domain.VenueBook{
		"mkt": {
			"polymarket": {
				Yes: domain.OutcomeBook{Bids: lvls([2]float64{0.60, 100})},
				No:  domain.OutcomeBook{Bids: lvls([2]float64{0.45, 150})},
			},
		},
	})}
	bus := &fakeBus{}
	history := &fakeHistory{}
	alerter := &fakeAlerter{}
	eng := New(testConfig(), nil)
	r := NewRunner(time.Second, nil, books, eng, bus, history, alerter)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := r.ScanOnce(context.Background(), t0)
	require.Len(t, res.New, 1)

	require.Len(t, bus.published, 1)
	assert.Equal(t, notify.EventDiscovered, bus.published[0].Event)
	assert.Equal(t, 1, bus.streamed)
	assert.Equal(t, []string{notify.EventDiscovered}, alerter.events)
	assert.Empty(t, history.inserted, "active opportunities are not persisted")

	// Signal disappears: expiry persisted and announced.
	books.snap = snapshotOf(t0, nil)
	res = r.ScanOnce(context.Background(), t0.Add(10*time.Second))
	require.Len(t, res.Expired, 1)

	require.Len(t, history.inserted, 1)
	assert.Equal(t, domain.OpportunityExpired, history.inserted[0].Status)
	assert.InDelta(t, 10.0, history.inserted[0].DurationSeconds, 1e-9)
	assert.Equal(t, notify.EventExpired, bus.published[len(bus.published)-1].Event)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	books := &staticBooks{snap: domain.Snapshot{}}
	eng := New(testConfig(), nil)
	r := NewRunner(5*time.Millisecond, nil, books, eng, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
