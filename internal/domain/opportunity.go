package domain

import (
	"fmt"
	"time"
)

// OpportunityKind classifies how an arbitrage locks in its profit.
type OpportunityKind string

const (
	// OpportunityInternal sells both outcomes of one market on a single
	// venue for a combined price above $1.
	OpportunityInternal OpportunityKind = "internal"

	// OpportunityCrossVenue buys YES cheaply on one venue and sells it
	// richly on another.
	OpportunityCrossVenue OpportunityKind = "cross_venue"
)

// OpportunityStatus is the lifecycle state of a detected opportunity.
type OpportunityStatus string

const (
	OpportunityActive  OpportunityStatus = "active"
	OpportunityExpired OpportunityStatus = "expired"
)

// Opportunity is one detected arbitrage signal and its lifecycle record.
//
// For internal opportunities Venue, YesBid and NoBid are set. For cross-venue
// opportunities BuyVenue/SellVenue and BuyAsk/SellBid are set. Profit fields
// are refreshed on every scan that reconfirms the signal; DiscoveredAt is
// fixed at first detection.
type Opportunity struct {
	ID        string
	MarketKey MarketKey
	Kind      OpportunityKind

	// Internal arbitrage detail.
	Venue  string
	YesBid float64
	NoBid  float64

	// Cross-venue arbitrage detail.
	BuyVenue  string
	SellVenue string
	BuyAsk    float64
	SellBid   float64

	GrossEdge         float64
	FeeCost           float64
	NetProfitPerShare float64
	MaxVolume         float64
	NetProfitTotal    float64
	ProfitPercent     float64

	Status          OpportunityStatus
	DiscoveredAt    time.Time
	ExpiredAt       *time.Time
	DurationSeconds float64
}

// TrackingKey identifies the active-set slot an opportunity occupies. At most
// one active opportunity exists per (market, kind), with cross-venue kinds
// parameterized by direction, so buy-on-A/sell-on-B and buy-on-B/sell-on-A
// track independently.
func (o Opportunity) TrackingKey() string {
	switch o.Kind {
	case OpportunityCrossVenue:
		return fmt.Sprintf("%s|%s|%s>%s", o.MarketKey, o.Kind, o.BuyVenue, o.SellVenue)
	default:
		return fmt.Sprintf("%s|%s|%s", o.MarketKey, o.Kind, o.Venue)
	}
}

// Describe renders a short human-readable summary, used by notifications.
func (o Opportunity) Describe() string {
	switch o.Kind {
	case OpportunityCrossVenue:
		return fmt.Sprintf("%s: buy YES @%.4f on %s, sell @%.4f on %s, net $%.2f (%.2f%%)",
			o.MarketKey, o.BuyAsk, o.BuyVenue, o.SellBid, o.SellVenue,
			o.NetProfitTotal, o.ProfitPercent*100)
	default:
		return fmt.Sprintf("%s: YES bid %.4f + NO bid %.4f on %s, net $%.2f",
			o.MarketKey, o.YesBid, o.NoBid, o.Venue, o.NetProfitTotal)
	}
}
