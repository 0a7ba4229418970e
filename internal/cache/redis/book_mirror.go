package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// bookTTL bounds how long a mirrored book survives without refresh, so
// external readers never act on a book from a dead collector.
const bookTTL = 5 * time.Minute

// BookMirror implements domain.BookMirror on Redis. Each (market, venue)
// book is one JSON value under its own key, replaced wholesale on every
// refresh to match the store's replacement semantics.
type BookMirror struct {
	rdb *redis.Client
}

// NewBookMirror creates a BookMirror backed by the given Client.
func NewBookMirror(c *Client) *BookMirror {
	return &BookMirror{rdb: c.Underlying()}
}

// mirrorEntry is the stored JSON document.
type mirrorEntry struct {
	Book      domain.VenueBook `json:"book"`
	Refreshed time.Time        `json:"refreshed"`
}

func bookKey(key domain.MarketKey, venue string) string {
	return fmt.Sprintf("arbwatch:book:%s:%s", key, venue)
}

// SetVenueBook stores one venue's book for a market.
func (m *BookMirror) SetVenueBook(ctx context.Context, key domain.MarketKey, venue string, book domain.VenueBook, ts time.Time) error {
	data, err := json.Marshal(mirrorEntry{Book: book, Refreshed: ts})
	if err != nil {
		return fmt.Errorf("redis: marshal book %s/%s: %w", key, venue, err)
	}
	if err := m.rdb.Set(ctx, bookKey(key, venue), data, bookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set book %s/%s: %w", key, venue, err)
	}
	return nil
}

// GetVenueBook loads one venue's mirrored book. Returns domain.ErrNotFound
// when the key is missing or expired.
func (m *BookMirror) GetVenueBook(ctx context.Context, key domain.MarketKey, venue string) (domain.VenueBook, time.Time, error) {
	data, err := m.rdb.Get(ctx, bookKey(key, venue)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VenueBook{}, time.Time{}, domain.ErrNotFound
		}
		return domain.VenueBook{}, time.Time{}, fmt.Errorf("redis: get book %s/%s: %w", key, venue, err)
	}

	var entry mirrorEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.VenueBook{}, time.Time{}, fmt.Errorf("redis: unmarshal book %s/%s: %w", key, venue, err)
	}
	return entry.Book, entry.Refreshed, nil
}

// Compile-time interface check.
var _ domain.BookMirror = (*BookMirror)(nil)
