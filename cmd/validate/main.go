// Command validate checks a USGS GeoJSON feed file before it is used as a
// fixture or as quakeq --feed-file input. It verifies that every feature
// decodes, that event fields are in physical ranges, and that a set of
// canned questions filter the feed without breaking any result invariant.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed data/mock/all_month.geojson \
//	  -now 2024-04-27T06:00:00Z
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/quake-query-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/filter"
	"github.com/couchcryptid/quake-query-service/internal/query"
)

// questions exercise every criterion the parser understands.
var questions = []string{
	"recent earthquakes",
	"show 5 earthquakes above magnitude 5",
	"magnitude 6+ in Japan last week",
	"quakes between 3 and 4.5 in the last 3 days",
	"earthquakes below 2.5 in the past 12 hours",
	"top 20 quakes near California this month",
	"anything in the last 30 minutes",
	"show 200 earthquakes in the past 30 days",
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
)

func main() {
	feed := flag.String("feed", "", "path to a GeoJSON feed file")
	nowFlag := flag.String("now", "", "evaluate windows relative to this RFC3339 time (default: newest event)")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	if *feed == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *noColor {
		color.NoColor = true
	}

	if code := run(os.Stdout, *feed, *nowFlag); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, feedPath, nowFlag string) int {
	fmt.Fprintln(w, "=== Earthquake Feed Validation ===")
	fmt.Fprintln(w)

	data, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: read feed: %v\n", err)
		return 1
	}
	events, err := usgs.Decode(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	now, err := referenceTime(nowFlag, events)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateDecoding(data, events),
		validateFields(events),
		validateQueries(events, now),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := passColor.Sprint("PASS")
		if !p.passed() {
			status = failColor.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Events: %d decoded, reference time %s\n", len(events), now.Format(time.RFC3339))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// referenceTime parses nowFlag, falling back to the newest event time.
func referenceTime(nowFlag string, events []domain.Event) (time.Time, error) {
	if nowFlag != "" {
		t, err := time.Parse(time.RFC3339, nowFlag)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse -now: %w", err)
		}
		return t.UTC(), nil
	}
	var newest time.Time
	for _, e := range events {
		if e.OccurredAt.After(newest) {
			newest = e.OccurredAt
		}
	}
	return newest, nil
}

// ── Phase 1: Decoding ──
// Every feature in the file should survive decoding.

type rawCollection struct {
	Metadata struct {
		Count *int `json:"count"`
	} `json:"metadata"`
	Features []struct {
		ID string `json:"id"`
	} `json:"features"`
}

func validateDecoding(data []byte, events []domain.Event) *phase {
	p := &phase{name: "Phase 1: Feature decoding"}

	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		p.errorf("re-read features: %v", err)
		return p
	}
	if raw.Metadata.Count != nil && *raw.Metadata.Count != len(raw.Features) {
		p.errorf("metadata.count=%d but %d features present", *raw.Metadata.Count, len(raw.Features))
	}

	decoded := make(map[string]bool, len(events))
	for _, e := range events {
		decoded[e.ID] = true
	}
	for i, f := range raw.Features {
		if !decoded[f.ID] || f.ID == "" {
			p.errorf("feature %d (id %q) was dropped as malformed", i, f.ID)
		}
	}
	return p
}

// ── Phase 2: Field ranges ──

func validateFields(events []domain.Event) *phase {
	p := &phase{name: "Phase 2: Event field ranges"}
	seen := make(map[string]int, len(events))

	for i := range events {
		e := &events[i]
		pf := func(format string, args ...any) {
			p.errorf("event %s: "+format, append([]any{e.ID}, args...)...)
		}
		if j, dup := seen[e.ID]; dup {
			pf("duplicate id (also at index %d)", j)
		}
		seen[e.ID] = i

		if e.Latitude < -90 || e.Latitude > 90 {
			pf("latitude %v out of range", e.Latitude)
		}
		if e.Longitude < -180 || e.Longitude > 180 {
			pf("longitude %v out of range", e.Longitude)
		}
		if e.DepthKM < -10 || e.DepthKM > 800 {
			pf("depth %v km out of range", e.DepthKM)
		}
		if e.HasMagnitude() && (*e.Magnitude < -2 || *e.Magnitude > 10) {
			pf("magnitude %v out of range", *e.Magnitude)
		}
		if strings.TrimSpace(e.Place) == "" {
			pf("empty place")
		}
	}
	return p
}

// ── Phase 3: Query invariants ──
// Each canned question must yield a result that respects its own spec.

func validateQueries(events []domain.Event, now time.Time) *phase {
	p := &phase{name: "Phase 3: Query result invariants"}

	for _, q := range questions {
		spec := query.Parse(q)
		result, err := filter.Apply(events, spec, now)
		if err != nil {
			p.errorf("%q: %v", q, err)
			continue
		}
		checkResult(p, q, result, now)

		again, err := filter.Apply(events, spec, now)
		if err != nil || !cmp.Equal(result, again) {
			p.errorf("%q: repeated filtering is not idempotent", q)
		}
	}
	return p
}

func checkResult(p *phase, q string, result domain.FilteredResult, now time.Time) {
	spec := result.Spec
	if len(result.Events) > spec.Limit {
		p.errorf("%q: %d events exceed limit %d", q, len(result.Events), spec.Limit)
	}
	if result.Total < len(result.Events) {
		p.errorf("%q: total %d below shown %d", q, result.Total, len(result.Events))
	}

	cutoff := now.Add(-spec.Window())
	for i, e := range result.Events {
		if e.OccurredAt.Before(cutoff) {
			p.errorf("%q: %s occurred before the window", q, e.ID)
		}
		if spec.MagnitudeMin != nil && (!e.HasMagnitude() || *e.Magnitude < *spec.MagnitudeMin) {
			p.errorf("%q: %s below magnitude_min", q, e.ID)
		}
		if spec.MagnitudeMax != nil && (!e.HasMagnitude() || *e.Magnitude > *spec.MagnitudeMax) {
			p.errorf("%q: %s above magnitude_max", q, e.ID)
		}
		if spec.Location != "" && !strings.Contains(strings.ToLower(e.Place), strings.ToLower(spec.Location)) {
			p.errorf("%q: %s place %q does not mention %q", q, e.ID, e.Place, spec.Location)
		}
		if i > 0 && e.OccurredAt.After(result.Events[i-1].OccurredAt) {
			p.errorf("%q: %s is out of order", q, e.ID)
		}
	}
}
