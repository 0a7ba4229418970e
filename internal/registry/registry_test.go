package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func testSpecs() []MarketSpec {
	return []MarketSpec{
		{
			Key:      "us-recession-2025",
			Question: "US recession in 2025?",
			Venues: map[string]VenueInstruments{
				"polymarket": {Yes: "1111", No: "2222"},
				"kalshi":     {Yes: "KXREC-25/yes", No: "KXREC-25/no"},
			},
		},
		{
			Key:      "fed-cut-march",
			Question: "Fed cuts rates in March?",
			Venues: map[string]VenueInstruments{
				"polymarket": {Yes: "3333", No: "4444"},
			},
		},
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := New(testSpecs())
	require.NoError(t, err)

	ref, ok := r.Resolve("polymarket", "2222")
	require.True(t, ok)
	assert.Equal(t, domain.MarketKey("us-recession-2025"), ref.Key)
	assert.Equal(t, domain.OutcomeNo, ref.Outcome)

	ref, ok = r.Resolve("kalshi", "KXREC-25/yes")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeYes, ref.Outcome)

	_, ok = r.Resolve("polymarket", "9999")
	assert.False(t, ok, "untracked instrument must not resolve")

	_, ok = r.Resolve("limitless", "1111")
	assert.False(t, ok, "instrument IDs are scoped per venue")
}

func TestRegistry_ListMarketsAndMetadata(t *testing.T) {
	r, err := New(testSpecs())
	require.NoError(t, err)

	keys := r.ListMarkets()
	assert.Equal(t, []domain.MarketKey{"fed-cut-march", "us-recession-2025"}, keys)

	info, ok := r.Metadata("us-recession-2025")
	require.True(t, ok)
	assert.Equal(t, "US recession in 2025?", info.Question)
	assert.Equal(t, []string{"kalshi", "polymarket"}, info.VenuesCovered)
	assert.True(t, info.CrossVenue())

	info, ok = r.Metadata("fed-cut-march")
	require.True(t, ok)
	assert.False(t, info.CrossVenue())
}

func TestRegistry_Instruments(t *testing.T) {
	r, err := New(testSpecs())
	require.NoError(t, err)

	assert.Equal(t, []string{"1111", "2222", "3333", "4444"}, r.Instruments("polymarket"))
	assert.Empty(t, r.Instruments("limitless"))
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := New([]MarketSpec{
		{Key: "a", Venues: map[string]VenueInstruments{"polymarket": {Yes: "1"}}},
		{Key: "b", Venues: map[string]VenueInstruments{"polymarket": {Yes: "1"}}},
	})
	assert.Error(t, err)

	_, err = New([]MarketSpec{
		{Key: "a"},
		{Key: "a"},
	})
	assert.Error(t, err)

	_, err = New([]MarketSpec{{Key: ""}})
	assert.Error(t, err)
}
