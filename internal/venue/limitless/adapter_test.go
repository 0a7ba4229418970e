package limitless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func TestAdapter_PullRawOrderBooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/pair-42/orderbook", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bids":[{"price":"0.48","size":"200"}],
			"asks":[{"price":"0.52","size":"120"}]
		}`))
	}))
	defer srv.Close()

	a := NewAdapter(NewClient(srv.URL), []string{"pair-42"})
	books, err := a.PullRawOrderBooks(context.Background())
	require.NoError(t, err)

	rb, ok := books["pair-42"]
	require.True(t, ok)
	assert.Equal(t, []domain.RawLevel{{Price: "0.48", Size: "200"}}, rb.Bids)
	assert.Equal(t, []domain.RawLevel{{Price: "0.52", Size: "120"}}, rb.Asks)
}

func TestAdapter_HTTPErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewAdapter(NewClient(srv.URL), []string{"pair-42"})
	_, err := a.PullRawOrderBooks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}
