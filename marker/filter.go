package marker

import (
	"sort"
	"strings"

	"github.com/omnitak/takcore/cot"
)

// SortOrder selects the ordering of Query results.
type SortOrder string

// Supported orderings. SortNone keeps map iteration order, which is
// deliberately unstable.
const (
	SortNone     SortOrder = ""
	SortCallsign SortOrder = "callsign"
	SortUpdated  SortOrder = "updated"
	SortUID      SortOrder = "uid"
)

// BBox is a geographic bounding box in decimal degrees. A box crossing
// the antimeridian is expressed with MinLon > MaxLon.
type BBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// Contains reports whether lat, lon falls inside the box (inclusive).
func (b BBox) Contains(lat, lon float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.MinLon <= b.MaxLon {
		return lon >= b.MinLon && lon <= b.MaxLon
	}
	return lon >= b.MinLon || lon <= b.MaxLon
}

// Filter narrows Query results. The zero value matches every marker.
// Set fields combine with AND; values within a set combine with OR.
type Filter struct {
	BBox         *BBox             `json:"bbox,omitempty"`
	Affiliations []cot.Affiliation `json:"affiliations,omitempty"`
	Dimensions   []cot.Dimension   `json:"dimensions,omitempty"`
	States       []State           `json:"states,omitempty"`
	// Text matches case-insensitively against callsign and uid.
	Text string    `json:"text,omitempty"`
	Sort SortOrder `json:"sort,omitempty"`
}

func (f Filter) matches(m Marker) bool {
	if f.BBox != nil && !f.BBox.Contains(m.Point.Lat, m.Point.Lon) {
		return false
	}
	if len(f.Affiliations) > 0 && !hasAffiliation(f.Affiliations, m.Affiliation) {
		return false
	}
	if len(f.Dimensions) > 0 && !hasDimension(f.Dimensions, m.Dimension) {
		return false
	}
	if len(f.States) > 0 && !hasState(f.States, m.State) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(m.Callsign), needle) &&
			!strings.Contains(strings.ToLower(m.UID), needle) {
			return false
		}
	}
	return true
}

// order sorts markers in place according to f.Sort. Ties break on uid so
// results are reproducible.
func (f Filter) order(markers []Marker) {
	switch f.Sort {
	case SortCallsign:
		sort.Slice(markers, func(i, j int) bool {
			if markers[i].Callsign != markers[j].Callsign {
				return markers[i].Callsign < markers[j].Callsign
			}
			return markers[i].UID < markers[j].UID
		})
	case SortUpdated:
		// Most recently updated first.
		sort.Slice(markers, func(i, j int) bool {
			if !markers[i].UpdatedAt.Equal(markers[j].UpdatedAt) {
				return markers[i].UpdatedAt.After(markers[j].UpdatedAt)
			}
			return markers[i].UID < markers[j].UID
		})
	case SortUID:
		sort.Slice(markers, func(i, j int) bool {
			return markers[i].UID < markers[j].UID
		})
	}
}

func hasAffiliation(set []cot.Affiliation, a cot.Affiliation) bool {
	for _, v := range set {
		if v == a {
			return true
		}
	}
	return false
}

func hasDimension(set []cot.Dimension, d cot.Dimension) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}

func hasState(set []State, s State) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
