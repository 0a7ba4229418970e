// Package registry maps venue-native instrument identifiers to canonical
// market keys. The mapping is static per process, built from configuration at
// startup; the aggregation path only reads it.
package registry

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// VenueInstruments names the per-outcome instrument IDs one venue uses for a
// market. Either side may be empty when the venue does not expose that
// outcome as a separate instrument.
type VenueInstruments struct {
	Yes string
	No  string
}

// MarketSpec declares one canonical market and its per-venue instruments.
type MarketSpec struct {
	Key      domain.MarketKey
	Question string
	Venues   map[string]VenueInstruments
}

// Ref is the result of resolving an instrument: which market and outcome the
// instrument's book belongs to.
type Ref struct {
	Key     domain.MarketKey
	Outcome domain.Outcome
}

// Registry is an immutable instrument→market index. Safe for concurrent
// reads without locking.
type Registry struct {
	byInstrument map[string]map[string]Ref
	info         map[domain.MarketKey]domain.MarketInfo
	keys         []domain.MarketKey
}

// New builds a Registry from market specs. Duplicate instrument IDs within a
// venue are a configuration error.
func New(specs []MarketSpec) (*Registry, error) {
	r := &Registry{
		byInstrument: make(map[string]map[string]Ref),
		info:         make(map[domain.MarketKey]domain.MarketInfo),
	}

	for _, spec := range specs {
		if spec.Key == "" {
			return nil, fmt.Errorf("registry: market with empty key (question %q)", spec.Question)
		}
		if _, dup := r.info[spec.Key]; dup {
			return nil, fmt.Errorf("registry: duplicate market key %q", spec.Key)
		}

		info := domain.MarketInfo{Key: spec.Key, Question: spec.Question}
		for venue, ins := range spec.Venues {
			if ins.Yes == "" && ins.No == "" {
				continue
			}
			if err := r.index(venue, ins.Yes, Ref{Key: spec.Key, Outcome: domain.OutcomeYes}); err != nil {
				return nil, err
			}
			if err := r.index(venue, ins.No, Ref{Key: spec.Key, Outcome: domain.OutcomeNo}); err != nil {
				return nil, err
			}
			info.VenuesCovered = append(info.VenuesCovered, venue)
		}
		sort.Strings(info.VenuesCovered)

		r.info[spec.Key] = info
		r.keys = append(r.keys, spec.Key)
	}

	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })
	return r, nil
}

func (r *Registry) index(venue, instrumentID string, ref Ref) error {
	if instrumentID == "" {
		return nil
	}
	venueIdx, ok := r.byInstrument[venue]
	if !ok {
		venueIdx = make(map[string]Ref)
		r.byInstrument[venue] = venueIdx
	}
	if existing, dup := venueIdx[instrumentID]; dup {
		return fmt.Errorf("registry: instrument %q on %s mapped to both %q and %q",
			instrumentID, venue, existing.Key, ref.Key)
	}
	venueIdx[instrumentID] = ref
	return nil
}

// Resolve returns the market/outcome an instrument belongs to. A false result
// means the instrument is untracked and its update should be discarded.
func (r *Registry) Resolve(venue, instrumentID string) (Ref, bool) {
	ref, ok := r.byInstrument[venue][instrumentID]
	return ref, ok
}

// ListMarkets returns all canonical market keys in stable order.
func (r *Registry) ListMarkets() []domain.MarketKey {
	out := make([]domain.MarketKey, len(r.keys))
	copy(out, r.keys)
	return out
}

// Metadata returns the human-readable info for a market.
func (r *Registry) Metadata(key domain.MarketKey) (domain.MarketInfo, bool) {
	info, ok := r.info[key]
	return info, ok
}

// Instruments returns every instrument ID registered for a venue, in stable
// order. Adapters use this to know what to subscribe to or poll.
func (r *Registry) Instruments(venue string) []string {
	venueIdx := r.byInstrument[venue]
	out := make([]string, 0, len(venueIdx))
	for id := range venueIdx {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
