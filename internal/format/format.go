// Package format renders filtered earthquake results as plain text replies.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/quake-query-service/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// Format renders result as a multi-line summary. Output depends only on the
// result, so equal inputs produce byte-identical text.
func Format(result domain.FilteredResult) string {
	spec := result.Spec
	criteria := describeCriteria(spec)

	if len(result.Events) == 0 {
		return fmt.Sprintf("No earthquakes found%s.", criteria)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s%s", result.Total, plural(result.Total, "earthquake", "earthquakes"), criteria)
	if result.Truncated() {
		fmt.Fprintf(&b, ", showing %d", len(result.Events))
	}
	b.WriteString(":\n")

	for i, e := range result.Events {
		b.WriteString("\n")
		writeEvent(&b, i+1, e)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeEvent(b *strings.Builder, n int, e domain.Event) {
	place := e.Place
	if place == "" {
		place = "Unknown location"
	}
	fmt.Fprintf(b, "%d. %s - %s\n", n, Magnitude(e.Magnitude), place)
	fmt.Fprintf(b, "   %s UTC\n", e.OccurredAt.UTC().Format(timeLayout))
	fmt.Fprintf(b, "   Lat: %.2f, Lon: %.2f | Depth: %.1f km%s\n", e.Latitude, e.Longitude, e.DepthKM, markers(e))
	if e.DetailURL != "" {
		fmt.Fprintf(b, "   %s\n", e.DetailURL)
	}
}

func markers(e domain.Event) string {
	var s string
	if e.AlertLevel != domain.AlertNone {
		s += " [" + strings.ToUpper(string(e.AlertLevel)) + " ALERT]"
	}
	if e.Tsunami {
		s += " [TSUNAMI WARNING]"
	}
	return s
}

// Magnitude renders a magnitude as "M5.2", or "M?" for unsized events.
func Magnitude(m *float64) string {
	if m == nil {
		return "M?"
	}
	return fmt.Sprintf("M%.1f", *m)
}

func describeCriteria(spec domain.FilterSpec) string {
	var s string
	if loc := strings.TrimSpace(spec.Location); loc != "" {
		s += " in " + loc
	}
	return s + " in the " + Window(spec.SinceHours) + " (" + MagnitudeRange(spec) + ")"
}

// Window renders a lookback such as "last hour", "last 6 hours" or "last 7 days".
func Window(hours float64) string {
	if hours == 1 {
		return "last hour"
	}
	if hours == math.Trunc(hours) {
		h := int64(hours)
		if h > 24 && h%24 == 0 {
			return fmt.Sprintf("last %d days", h/24)
		}
		return fmt.Sprintf("last %d hours", h)
	}
	if hours < 1 {
		minutes := math.Round(hours*60*100) / 100
		return "last " + strconv.FormatFloat(minutes, 'f', -1, 64) + " " + plural(int(math.Ceil(minutes)), "minute", "minutes")
	}
	return "last " + strconv.FormatFloat(hours, 'f', -1, 64) + " hours"
}

// MagnitudeRange renders the magnitude criteria of spec.
func MagnitudeRange(spec domain.FilterSpec) string {
	switch {
	case spec.MagnitudeMin != nil && spec.MagnitudeMax != nil:
		return fmt.Sprintf("M%.1f to M%.1f", *spec.MagnitudeMin, *spec.MagnitudeMax)
	case spec.MagnitudeMin != nil:
		return fmt.Sprintf("M%.1f+", *spec.MagnitudeMin)
	case spec.MagnitudeMax != nil:
		return fmt.Sprintf("up to M%.1f", *spec.MagnitudeMax)
	default:
		return "any magnitude"
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
