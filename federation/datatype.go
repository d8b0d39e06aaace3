package federation

import "strings"

// DataType is the coarse sharing category policy rules speak. It is
// deliberately coarser than the CoT taxonomy: policies say "share
// friendly positions, hold back hostiles", not full type strings.
type DataType string

// Sharing categories. DataAll is the wildcard accepted in policy sets.
const (
	DataAll      DataType = "all"
	DataFriendly DataType = "friendly"
	DataHostile  DataType = "hostile"
	DataNeutral  DataType = "neutral"
	DataUnknown  DataType = "unknown"
	DataSensor   DataType = "sensor"
	DataGeofence DataType = "geofence"
	DataRoute    DataType = "route"
	DataCasevac  DataType = "casevac"
	DataTarget   DataType = "target"
)

// ClassifyDataType maps a CoT type string onto its sharing category.
// Assumed friends count as friendly and suspects as hostile, the same
// collapsing the TAK map display applies. Types with no mapping (chat,
// alerts, vendor extensions) classify as DataUnknown, so they flow only
// under an explicit "unknown" entry or the "all" wildcard.
func ClassifyDataType(typ string) DataType {
	switch {
	case strings.HasPrefix(typ, "a-f-"), strings.HasPrefix(typ, "a-a-"):
		return DataFriendly
	case strings.HasPrefix(typ, "a-h-"), strings.HasPrefix(typ, "a-s-"):
		return DataHostile
	case strings.HasPrefix(typ, "a-n-"):
		return DataNeutral
	case strings.HasPrefix(typ, "a-u-"):
		return DataUnknown
	case strings.HasPrefix(typ, "b-m-p-s-p-i"):
		return DataSensor
	case strings.HasPrefix(typ, "b-m-p-t"):
		return DataTarget
	case strings.HasPrefix(typ, "b-m-r"):
		return DataRoute
	case strings.HasPrefix(typ, "b-r-f-h-c"):
		return DataCasevac
	case strings.HasPrefix(typ, "u-d-"):
		return DataGeofence
	default:
		return DataUnknown
	}
}
