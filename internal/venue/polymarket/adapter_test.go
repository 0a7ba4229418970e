package polymarket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_SnapshotThenDeltas(t *testing.T) {
	a := NewAdapter(NewWSClient("wss://unused"), []string{"1111"})

	a.applyBook(BookMessage{
		AssetID: "1111",
		Bids: []WSPriceLevel{
			{Price: "0.60", Size: "100"},
			{Price: "0.59", Size: "50"},
		},
		Asks: []WSPriceLevel{{Price: "0.62", Size: "80"}},
	})

	// Level update, level removal, new level.
	a.applyPriceChange(PriceChangeMessage{AssetID: "1111", Side: "BUY", Price: "0.60", Size: "40"})
	a.applyPriceChange(PriceChangeMessage{AssetID: "1111", Side: "BUY", Price: "0.59", Size: "0"})
	a.applyPriceChange(PriceChangeMessage{AssetID: "1111", Side: "SELL", Price: "0.63", Size: "25"})

	books, err := a.PullRawOrderBooks(context.Background())
	require.NoError(t, err)
	rb := books["1111"]

	require.Len(t, rb.Bids, 1)
	assert.Equal(t, "0.60", rb.Bids[0].Price)
	assert.Equal(t, "40", rb.Bids[0].Size)

	require.Len(t, rb.Asks, 2)
	sizes := map[string]string{}
	for _, lvl := range rb.Asks {
		sizes[lvl.Price] = lvl.Size
	}
	assert.Equal(t, map[string]string{"0.62": "80", "0.63": "25"}, sizes)
}

func TestAdapter_DropsDeltaBeforeSnapshot(t *testing.T) {
	a := NewAdapter(NewWSClient("wss://unused"), []string{"1111"})

	a.applyPriceChange(PriceChangeMessage{AssetID: "1111", Side: "BUY", Price: "0.60", Size: "40"})

	books, err := a.PullRawOrderBooks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books, "asset without a snapshot must stay absent")
}

func TestAdapter_NewSnapshotReplacesBook(t *testing.T) {
	a := NewAdapter(NewWSClient("wss://unused"), []string{"1111"})

	a.applyBook(BookMessage{
		AssetID: "1111",
		Bids:    []WSPriceLevel{{Price: "0.60", Size: "100"}},
	})
	a.applyBook(BookMessage{
		AssetID: "1111",
		Bids:    []WSPriceLevel{{Price: "0.55", Size: "30"}},
	})

	books, err := a.PullRawOrderBooks(context.Background())
	require.NoError(t, err)
	rb := books["1111"]
	require.Len(t, rb.Bids, 1)
	assert.Equal(t, "0.55", rb.Bids[0].Price)
}
