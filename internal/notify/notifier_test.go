package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type spySender struct {
	name   string
	titles []string
	err    error
}

func (s *spySender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *spySender) Name() string { return s.name }

func TestNotifier_FiltersByEvent(t *testing.T) {
	spy := &spySender{name: "spy"}
	n := NewNotifier([]Sender{spy}, []string{EventDiscovered}, nil)

	require.NoError(t, n.Notify(context.Background(), EventDiscovered, "found", "body"))
	require.NoError(t, n.Notify(context.Background(), EventExpired, "gone", "body"))

	assert.Equal(t, []string{"found"}, spy.titles)
}

func TestNotifier_EmptyEventListAllowsAll(t *testing.T) {
	spy := &spySender{name: "spy"}
	n := NewNotifier([]Sender{spy}, nil, nil)

	require.NoError(t, n.Notify(context.Background(), EventExpired, "gone", "body"))
	assert.Len(t, spy.titles, 1)
}

func TestNotifier_SenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &spySender{name: "bad", err: errors.New("boom")}
	good := &spySender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, nil)

	err := n.Notify(context.Background(), EventDiscovered, "found", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1, "remaining senders still receive the message")
}

func TestNotifier_NotifyOpportunity(t *testing.T) {
	spy := &spySender{name: "spy"}
	n := NewNotifier([]Sender{spy}, nil, nil)

	opp := domain.Opportunity{
		MarketKey:       "us-recession-2025",
		Kind:            domain.OpportunityInternal,
		Venue:           "polymarket",
		YesBid:          0.60,
		NoBid:           0.45,
		NetProfitTotal:  4.4,
		DurationSeconds: 12.5,
	}

	require.NoError(t, n.NotifyOpportunity(context.Background(), EventDiscovered, opp))
	require.NoError(t, n.NotifyOpportunity(context.Background(), EventExpired, opp))

	require.Len(t, spy.titles, 2)
	assert.Contains(t, spy.titles[0], "Arb found")
	assert.Contains(t, spy.titles[1], "12.5s")
}
