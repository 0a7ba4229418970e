package domain

// MarketInfo is human-readable metadata for a canonical market, as exposed by
// the market registry.
type MarketInfo struct {
	Key           MarketKey
	Question      string
	VenuesCovered []string
}

// CrossVenue reports whether the market is carried by at least two venues,
// which is the precondition for cross-venue checks.
func (m MarketInfo) CrossVenue() bool {
	return len(m.VenuesCovered) >= 2
}
