package cot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeAffiliation(t *testing.T) {
	tests := []struct {
		typ  string
		want Affiliation
	}{
		{"a-f-G-E-S", AffiliationFriendly},
		{"a-h-A-M-F", AffiliationHostile},
		{"a-n-G", AffiliationNeutral},
		{"a-u-S", AffiliationUnknown},
		{"a-a-G-U-C", AffiliationAssumedFriend},
		{"a-s-G", AffiliationSuspect},
		{"a-p-A", AffiliationPending},
		{"a-x-G", AffiliationUnknown},
		{"b-t-f", AffiliationNone},
		{"b-m-p-w", AffiliationNone},
		{"t-x-d-d", AffiliationNone},
	}

	for _, test := range tests {
		t.Run(test.typ, func(t *testing.T) {
			assert.Equal(t, test.want, TypeAffiliation(test.typ))
		})
	}
}

func TestTypeDimension(t *testing.T) {
	tests := []struct {
		typ  string
		want Dimension
	}{
		{"a-f-G-E-S", DimensionGround},
		{"a-h-A-M-F", DimensionAir},
		{"a-u-S", DimensionSeaSurface},
		{"a-f-U", DimensionSubsurface},
		{"a-f-P", DimensionSpace},
		{"a-f-Z", DimensionOther},
		{"a-f", DimensionOther},
		{"b-t-f", DimensionNone},
	}

	for _, test := range tests {
		t.Run(test.typ, func(t *testing.T) {
			assert.Equal(t, test.want, TypeDimension(test.typ))
		})
	}
}

func TestIsFriendly(t *testing.T) {
	assert.True(t, IsFriendly("a-f-G-E-V"))
	assert.True(t, IsFriendly("a-f-A"))
	assert.False(t, IsFriendly("a-h-G"))
	assert.False(t, IsFriendly("a-f"), "bare a-f has no trailing segment separator")
	assert.False(t, IsFriendly("b-t-f"))
}

func TestIsAtom(t *testing.T) {
	assert.True(t, IsAtom("a-f-G"))
	assert.True(t, IsAtom("a-u-G-E"))
	assert.False(t, IsAtom("b-a-o-tbl"))
	assert.False(t, IsAtom("t-x-d-d"))
}
