package marker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/cot"
)

func queryFixture(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t, Config{})

	seed := []struct {
		uid, typ, callsign string
		lat, lon           float64
		stale              time.Time
	}{
		{"ALPHA-1", "a-f-G-E-S", "ALPHA1", 38.90, -77.03, base.Add(time.Hour)},
		{"ALPHA-2", "a-f-A-M-F", "EAGLE6", 39.50, -76.80, base.Add(time.Hour)},
		{"BRAVO-1", "a-h-G-U-C", "VIPER2", 38.85, -77.10, base.Add(-time.Second)},
		{"CHARLIE-1", "a-n-S-X-M", "TRADER", 36.00, -75.50, base.Add(time.Hour)},
	}
	for _, sd := range seed {
		ev := positionEvent(sd.uid, sd.typ, sd.callsign, sd.stale)
		ev.Point = cot.NewPoint(sd.lat, sd.lon, 0)
		_, err := s.ingestAt(ev, base)
		require.NoError(t, err)
	}
	s.sweep(base) // BRAVO-1 goes stale
	return s
}

func uids(markers []Marker) []string {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		out = append(out, m.UID)
	}
	return out
}

func TestStore_QueryFilters(t *testing.T) {
	s := queryFixture(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			"empty filter matches all",
			Filter{Sort: SortUID},
			[]string{"ALPHA-1", "ALPHA-2", "BRAVO-1", "CHARLIE-1"},
		},
		{
			"bounding box around DC",
			Filter{BBox: &BBox{MinLat: 38.5, MinLon: -77.5, MaxLat: 39.0, MaxLon: -76.5}, Sort: SortUID},
			[]string{"ALPHA-1", "BRAVO-1"},
		},
		{
			"friendly only",
			Filter{Affiliations: []cot.Affiliation{cot.AffiliationFriendly}, Sort: SortUID},
			[]string{"ALPHA-1", "ALPHA-2"},
		},
		{
			"hostile or neutral",
			Filter{Affiliations: []cot.Affiliation{cot.AffiliationHostile, cot.AffiliationNeutral}, Sort: SortUID},
			[]string{"BRAVO-1", "CHARLIE-1"},
		},
		{
			"air dimension",
			Filter{Dimensions: []cot.Dimension{cot.DimensionAir}, Sort: SortUID},
			[]string{"ALPHA-2"},
		},
		{
			"stale state only",
			Filter{States: []State{StateStale}, Sort: SortUID},
			[]string{"BRAVO-1"},
		},
		{
			"text matches callsign case-insensitively",
			Filter{Text: "eagle", Sort: SortUID},
			[]string{"ALPHA-2"},
		},
		{
			"text matches uid",
			Filter{Text: "alpha-", Sort: SortUID},
			[]string{"ALPHA-1", "ALPHA-2"},
		},
		{
			"conjunction of criteria",
			Filter{
				Affiliations: []cot.Affiliation{cot.AffiliationFriendly},
				Dimensions:   []cot.Dimension{cot.DimensionGround},
				Sort:         SortUID,
			},
			[]string{"ALPHA-1"},
		},
		{
			"no match",
			Filter{Text: "zulu"},
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Query(tt.filter)
			assert.Equal(t, tt.want, uids(got))
		})
	}
}

func TestStore_QuerySortOrders(t *testing.T) {
	s := queryFixture(t)

	byCallsign := s.Query(Filter{Sort: SortCallsign})
	require.Len(t, byCallsign, 4)
	assert.Equal(t, "ALPHA1", byCallsign[0].Callsign)
	assert.Equal(t, "VIPER2", byCallsign[3].Callsign)

	// Touch CHARLIE-1 so it sorts first by recency.
	_, err := s.ingestAt(positionEvent("CHARLIE-1", "a-n-S-X-M", "TRADER", base.Add(time.Hour)), base.Add(time.Minute))
	require.NoError(t, err)

	byUpdated := s.Query(Filter{Sort: SortUpdated})
	require.Len(t, byUpdated, 4)
	assert.Equal(t, "CHARLIE-1", byUpdated[0].UID)
}

func TestStore_QueryReturnsCopies(t *testing.T) {
	s := queryFixture(t)

	got := s.Query(Filter{Text: "ALPHA-1"})
	require.Len(t, got, 1)
	got[0].Callsign = "TAMPERED"

	m, ok := s.Get("ALPHA-1")
	require.True(t, ok)
	assert.Equal(t, "ALPHA1", m.Callsign, "query results must not alias store state")
}

func TestBBox_Contains(t *testing.T) {
	tests := []struct {
		name     string
		box      BBox
		lat, lon float64
		want     bool
	}{
		{"inside", BBox{MinLat: 0, MinLon: 0, MaxLat: 10, MaxLon: 10}, 5, 5, true},
		{"on edge", BBox{MinLat: 0, MinLon: 0, MaxLat: 10, MaxLon: 10}, 10, 10, true},
		{"north of box", BBox{MinLat: 0, MinLon: 0, MaxLat: 10, MaxLon: 10}, 11, 5, false},
		{"west of box", BBox{MinLat: 0, MinLon: 0, MaxLat: 10, MaxLon: 10}, 5, -1, false},
		{"antimeridian inside east", BBox{MinLat: -10, MinLon: 170, MaxLat: 10, MaxLon: -170}, 0, 175, true},
		{"antimeridian inside west", BBox{MinLat: -10, MinLon: 170, MaxLat: 10, MaxLon: -170}, 0, -175, true},
		{"antimeridian outside", BBox{MinLat: -10, MinLon: 170, MaxLat: 10, MaxLon: -170}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Contains(tt.lat, tt.lon))
		})
	}
}
