// Package resolver assigns a coordinate to the jurisdiction responsible for
// it. Resolution is a pure function over a catalog snapshot.
package resolver

import (
	"bytes"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/internal/jurisdictions"
)

// ErrNotFound is returned when the catalog is empty.
var ErrNotFound = errors.New("no jurisdiction available")

type MatchType string

const (
	MatchBounds   MatchType = "BOUNDS"
	MatchDistrict MatchType = "DISTRICT"
	MatchState    MatchType = "STATE"
	MatchFallback MatchType = "FALLBACK"
)

const (
	ConfidenceBounds   = 0.95
	ConfidenceDistrict = 0.8
	ConfidenceState    = 0.5
	ConfidenceFallback = 0.1
)

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies on the globe.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Address is a reverse-geocoded location. Any field may be empty.
type Address struct {
	District         string `json:"district,omitempty"`
	State            string `json:"state,omitempty"`
	City             string `json:"city,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
}

// Empty reports whether a is nil or carries no component.
func (a *Address) Empty() bool {
	return a == nil || *a == (Address{})
}

type Match struct {
	JurisdictionID uuid.UUID `json:"jurisdiction_id"`
	MatchType      MatchType `json:"match_type"`
	Confidence     float64   `json:"confidence"`
}

// LowConfidence marks assignments that should be surfaced for manual review.
func (m Match) LowConfidence() bool {
	return m.MatchType == MatchFallback
}

// Resolve picks the best jurisdiction for coord in priority order: bounds
// containment, district and state, state only, then the lowest id.
// addr may be nil when reverse geocoding failed.
func Resolve(coord Coordinate, addr *Address, catalog []jurisdictions.Jurisdiction) (Match, error) {
	if len(catalog) == 0 {
		return Match{}, ErrNotFound
	}

	if j := byBounds(coord, catalog); j != nil {
		return match(j, MatchBounds, ConfidenceBounds), nil
	}

	if addr != nil {
		if j := byDistrict(addr, catalog); j != nil {
			return match(j, MatchDistrict, ConfidenceDistrict), nil
		}
		if j := byState(addr, catalog); j != nil {
			return match(j, MatchState, ConfidenceState), nil
		}
	}

	return match(lowest(catalog), MatchFallback, ConfidenceFallback), nil
}

// byBounds returns the smallest containing rectangle, lowest id on ties.
func byBounds(coord Coordinate, catalog []jurisdictions.Jurisdiction) *jurisdictions.Jurisdiction {
	var best *jurisdictions.Jurisdiction
	for i := range catalog {
		j := &catalog[i]
		if j.Bounds == nil || !j.Bounds.Contains(coord.Latitude, coord.Longitude) {
			continue
		}
		if best == nil {
			best = j
			continue
		}
		area, bestArea := j.Bounds.Area(), best.Bounds.Area()
		if area < bestArea || (area == bestArea && less(j.ID, best.ID)) {
			best = j
		}
	}
	return best
}

func byDistrict(addr *Address, catalog []jurisdictions.Jurisdiction) *jurisdictions.Jurisdiction {
	district, state := normalize(addr.District), normalize(addr.State)
	if district == "" || state == "" {
		return nil
	}
	return first(catalog, func(j *jurisdictions.Jurisdiction) bool {
		return normalize(j.District) == district && normalize(j.State) == state
	})
}

func byState(addr *Address, catalog []jurisdictions.Jurisdiction) *jurisdictions.Jurisdiction {
	state := normalize(addr.State)
	if state == "" {
		return nil
	}
	return first(catalog, func(j *jurisdictions.Jurisdiction) bool {
		return normalize(j.State) == state
	})
}

// first returns the lowest-id jurisdiction satisfying pred.
func first(catalog []jurisdictions.Jurisdiction, pred func(*jurisdictions.Jurisdiction) bool) *jurisdictions.Jurisdiction {
	var best *jurisdictions.Jurisdiction
	for i := range catalog {
		j := &catalog[i]
		if !pred(j) {
			continue
		}
		if best == nil || less(j.ID, best.ID) {
			best = j
		}
	}
	return best
}

func lowest(catalog []jurisdictions.Jurisdiction) *jurisdictions.Jurisdiction {
	return first(catalog, func(*jurisdictions.Jurisdiction) bool { return true })
}

func match(j *jurisdictions.Jurisdiction, t MatchType, confidence float64) Match {
	return Match{JurisdictionID: j.ID, MatchType: t, Confidence: confidence}
}

func less(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
