package domain

import (
	"context"
	"io"
	"time"
)

// BookMirror publishes the latest normalized books to an external cache so
// dashboards and other consumers can read them without touching the
// in-process store.
type BookMirror interface {
	SetVenueBook(ctx context.Context, key MarketKey, venue string, book VenueBook, ts time.Time) error
	GetVenueBook(ctx context.Context, key MarketKey, venue string) (VenueBook, time.Time, error)
}

// SignalBus provides pub/sub for opportunity events plus a durable capped
// stream for consumers that cannot afford to miss discoveries.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// OpportunityStore is the durable append-only history of expired
// opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	// ListBefore returns expired opportunities with ExpiredAt strictly
	// before the cutoff, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)
	// DeleteBefore prunes rows already archived.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads opaque objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
