package cot

import "strings"

// Well-known type strings and prefixes from the CoT taxonomy.
const (
	// TypeChat is the GeoChat message type.
	TypeChat = "b-t-f"
	// TypeRemove is the deletion convention: an event of this type with a
	// link child names the uid to forget.
	TypeRemove = "t-x-d-d"
	// TypeWaypoint is a user-dropped map point.
	TypeWaypoint = "b-m-p-w"

	// AtomPrefix starts every live-entity (atom) type.
	AtomPrefix = "a-"
	// FriendlyPrefix starts every friendly atom type.
	FriendlyPrefix = "a-f-"
	// AlertPrefix starts every emergency beacon type.
	AlertPrefix = "b-a-"
	// SensorPointPrefix starts sensor point-of-interest types.
	SensorPointPrefix = "b-m-p-s-p-i"
	// RoutePrefix starts route types.
	RoutePrefix = "b-m-r"

	// TypeAlertCancel withdraws an emergency beacon.
	TypeAlertCancel = "b-a-o-c"
	// TypeAlert911 is the default beacon raised by a panic button.
	TypeAlert911 = "b-a-o-tbl"
)

// Affiliation is the second taxonomy segment of an atom type: whose side the
// entity is on.
type Affiliation string

const (
	AffiliationFriendly      Affiliation = "friendly"
	AffiliationHostile       Affiliation = "hostile"
	AffiliationNeutral       Affiliation = "neutral"
	AffiliationUnknown       Affiliation = "unknown"
	AffiliationAssumedFriend Affiliation = "assumed-friend"
	AffiliationSuspect       Affiliation = "suspect"
	AffiliationPending       Affiliation = "pending"
	// AffiliationNone marks events that are not atoms at all.
	AffiliationNone Affiliation = "none"
)

// Dimension is the third taxonomy segment of an atom type: the battle
// dimension the entity operates in.
type Dimension string

const (
	DimensionSpace      Dimension = "space"
	DimensionAir        Dimension = "air"
	DimensionGround     Dimension = "ground"
	DimensionSeaSurface Dimension = "sea-surface"
	DimensionSubsurface Dimension = "subsurface"
	// DimensionOther marks atom types with an unrecognized dimension code.
	DimensionOther Dimension = "other"
	// DimensionNone marks events that are not atoms at all.
	DimensionNone Dimension = "none"
)

// IsAtom reports whether the type string describes a live entity.
func IsAtom(typ string) bool {
	return strings.HasPrefix(typ, AtomPrefix)
}

// IsFriendly reports whether the type string describes a friendly atom.
func IsFriendly(typ string) bool {
	return strings.HasPrefix(typ, FriendlyPrefix)
}

// TypeAffiliation extracts the affiliation from an atom type string like
// "a-f-G-E-V". Non-atom types return AffiliationNone; atoms with an
// unrecognized code return AffiliationUnknown.
func TypeAffiliation(typ string) Affiliation {
	if !IsAtom(typ) {
		return AffiliationNone
	}
	parts := strings.Split(typ, "-")
	if len(parts) < 2 || parts[1] == "" {
		return AffiliationUnknown
	}
	switch parts[1] {
	case "f":
		return AffiliationFriendly
	case "h":
		return AffiliationHostile
	case "n":
		return AffiliationNeutral
	case "u":
		return AffiliationUnknown
	case "a":
		return AffiliationAssumedFriend
	case "s":
		return AffiliationSuspect
	case "p":
		return AffiliationPending
	default:
		return AffiliationUnknown
	}
}

// TypeDimension extracts the battle dimension from an atom type string.
// Non-atom types return DimensionNone.
func TypeDimension(typ string) Dimension {
	if !IsAtom(typ) {
		return DimensionNone
	}
	parts := strings.Split(typ, "-")
	if len(parts) < 3 || parts[2] == "" {
		return DimensionOther
	}
	switch parts[2] {
	case "P":
		return DimensionSpace
	case "A":
		return DimensionAir
	case "G":
		return DimensionGround
	case "S":
		return DimensionSeaSurface
	case "U":
		return DimensionSubsurface
	default:
		return DimensionOther
	}
}
