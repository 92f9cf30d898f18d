package usgs

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/couchcryptid/quake-query-service/internal/domain"
)

// USGS GeoJSON summary feed types. Only the fields the service reads are mapped.

type featureCollection struct {
	Type     string    `json:"type"`
	Metadata metadata  `json:"metadata"`
	Features []feature `json:"features"`
}

type metadata struct {
	Generated int64  `json:"generated"`
	Title     string `json:"title"`
	Count     int    `json:"count"`
}

type feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
	Geometry   geometry   `json:"geometry"`
}

type properties struct {
	Mag     *float64 `json:"mag"`
	Place   string   `json:"place"`
	Time    *int64   `json:"time"` // ms since epoch
	URL     string   `json:"url,omitempty"`
	Alert   *string  `json:"alert"`
	Tsunami int      `json:"tsunami"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

// Decode reads a GeoJSON feature collection and returns its events. Features
// without an id, time or coordinates, or with a non-finite magnitude, are
// dropped so callers only ever see well-formed events.
func Decode(r io.Reader) ([]domain.Event, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	events := make([]domain.Event, 0, len(fc.Features))
	for _, f := range fc.Features {
		if e, ok := toEvent(f); ok {
			events = append(events, e)
		}
	}
	return events, nil
}

func toEvent(f feature) (domain.Event, bool) {
	p := f.Properties
	if f.ID == "" || p.Time == nil || len(f.Geometry.Coordinates) < 2 {
		return domain.Event{}, false
	}
	if p.Mag != nil && (math.IsNaN(*p.Mag) || math.IsInf(*p.Mag, 0)) {
		return domain.Event{}, false
	}

	e := domain.Event{
		ID:         f.ID,
		Place:      p.Place,
		OccurredAt: time.UnixMilli(*p.Time).UTC(),
		Longitude:  f.Geometry.Coordinates[0],
		Latitude:   f.Geometry.Coordinates[1],
		Tsunami:    p.Tsunami == 1,
		DetailURL:  p.URL,
	}
	if p.Mag != nil {
		e.Magnitude = domain.Mag(*p.Mag)
	}
	if len(f.Geometry.Coordinates) > 2 {
		e.DepthKM = f.Geometry.Coordinates[2]
	}
	if p.Alert != nil {
		e.AlertLevel = domain.ParseAlertLevel(*p.Alert)
	}
	return e, true
}

// Encode writes events as a USGS-style GeoJSON feature collection. generated
// stamps the metadata block.
func Encode(w io.Writer, title string, generated time.Time, events []domain.Event) error {
	fc := featureCollection{
		Type: "FeatureCollection",
		Metadata: metadata{
			Generated: generated.UnixMilli(),
			Title:     title,
			Count:     len(events),
		},
		Features: make([]feature, len(events)),
	}
	for i, e := range events {
		fc.Features[i] = fromEvent(e)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return nil
}

func fromEvent(e domain.Event) feature {
	ms := e.OccurredAt.UnixMilli()
	f := feature{
		Type: "Feature",
		ID:   e.ID,
		Properties: properties{
			Mag:   e.Magnitude,
			Place: e.Place,
			Time:  &ms,
			URL:   e.DetailURL,
		},
		Geometry: geometry{
			Type:        "Point",
			Coordinates: []float64{e.Longitude, e.Latitude, e.DepthKM},
		},
	}
	if e.AlertLevel != domain.AlertNone {
		alert := string(e.AlertLevel)
		f.Properties.Alert = &alert
	}
	if e.Tsunami {
		f.Properties.Tsunami = 1
	}
	return f
}
