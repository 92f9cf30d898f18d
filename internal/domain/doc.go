// Package domain models USGS earthquake feed data and the filter criteria
// derived from natural-language queries.
//
// # Data Source
//
// Events come from the USGS real-time GeoJSON summary feeds at
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/. Four rolling
// windows are published (all_hour, all_day, all_week, all_month); the source
// adapter picks the smallest one covering a query's lookback.
//
// # USGS Conventions
//
// Coordinates:
//
//	GeoJSON order is [longitude, latitude, depth], depth in kilometers.
//
// Time:
//
//	Milliseconds since the Unix epoch, always UTC.
//
// Magnitude:
//
//	Preferred magnitude of the event, any scale (ml, mb, mww...). The feed sends
//	null for events that have not been sized yet, so Event.Magnitude is a pointer.
//
// Place:
//
//	Free text such as "12 km SSW of Ishinomaki, Japan". Location filtering is a
//	case-insensitive substring match against it.
//
// Alert:
//
//	PAGER alert level: green, yellow, orange, red, or null.
//
// Tsunami:
//
//	1 when the event is in an oceanic region and a tsunami message may follow.
//	It is a flag, not a confirmed wave.
//
// # Filter Invariants
//
// A FilterSpec handed to the filter engine satisfies: magnitude bounds are finite
// and min <= max, SinceHours > 0, 1 <= Limit <= [MaxLimit]. [FilterSpec.Normalize]
// repairs swapped bounds and non-positive window or limit; anything still broken
// after that is an [ErrInvalidFilterState].
package domain
