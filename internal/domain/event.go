package domain

import (
	"context"
	"time"
)

// AlertLevel is the USGS PAGER alert level attached to an event.
type AlertLevel string

const (
	AlertNone   AlertLevel = ""
	AlertGreen  AlertLevel = "green"
	AlertYellow AlertLevel = "yellow"
	AlertOrange AlertLevel = "orange"
	AlertRed    AlertLevel = "red"
)

// ParseAlertLevel maps a feed value to an AlertLevel. Unknown values map to AlertNone.
func ParseAlertLevel(s string) AlertLevel {
	switch AlertLevel(s) {
	case AlertGreen, AlertYellow, AlertOrange, AlertRed:
		return AlertLevel(s)
	default:
		return AlertNone
	}
}

// Event is a single seismic reading from the upstream feed. Events are never
// mutated after the source hands them over.
type Event struct {
	ID         string     `json:"id"`
	Magnitude  *float64   `json:"magnitude"`
	Place      string     `json:"place"`
	OccurredAt time.Time  `json:"occurred_at"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	DepthKM    float64    `json:"depth_km"`
	AlertLevel AlertLevel `json:"alert_level,omitempty"`
	Tsunami    bool       `json:"tsunami"`
	DetailURL  string     `json:"detail_url,omitempty"`
}

// HasMagnitude reports whether the feed supplied a magnitude.
func (e Event) HasMagnitude() bool { return e.Magnitude != nil }

// Mag returns a pointer to m, for building events in fixtures and decoders.
func Mag(m float64) *float64 { return &m }

// EventSource supplies the current feed snapshot. The window is a hint that lets
// a source pick a smaller upstream feed; callers still filter by time themselves.
type EventSource interface {
	FetchRecentEvents(ctx context.Context, window time.Duration) ([]Event, error)
}
