// Command genmock writes a deterministic USGS-style GeoJSON feed for offline
// use with quakeq --feed-file and for test fixtures. Event times are laid out
// relative to a fixed clock so the same flags always produce the same file.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/all_month.geojson \
//	  -count 120 \
//	  -now 2024-04-27T06:00:00Z
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-query-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-query-service/internal/domain"
)

var defaultNow = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

// region is a seismically active area events are scattered around.
type region struct {
	place    string
	lat, lon float64
	coastal  bool
}

var regions = []region{
	{place: "Honshu, Japan", lat: 38.3, lon: 142.4, coastal: true},
	{place: "Hokkaido, Japan", lat: 42.8, lon: 143.9, coastal: true},
	{place: "Ridgecrest, CA", lat: 35.7, lon: -117.6},
	{place: "The Geysers, CA", lat: 38.8, lon: -122.8},
	{place: "Anchorage, Alaska", lat: 61.2, lon: -149.9, coastal: true},
	{place: "Valparaiso, Chile", lat: -33.0, lon: -71.6, coastal: true},
	{place: "Sumatra, Indonesia", lat: -0.9, lon: 100.4, coastal: true},
	{place: "Luzon, Philippines", lat: 15.5, lon: 120.9, coastal: true},
	{place: "Central Italy", lat: 42.7, lon: 13.2},
	{place: "Tonga", lat: -20.4, lon: -174.6, coastal: true},
	{place: "Reykjanes Peninsula, Iceland", lat: 63.9, lon: -22.3},
	{place: "Hualien, Taiwan", lat: 23.9, lon: 121.6, coastal: true},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the GeoJSON feed")
	count := flag.Int("count", 120, "number of events to generate")
	seed := flag.Uint64("seed", 20240426, "random seed")
	nowFlag := flag.String("now", defaultNow.Format(time.RFC3339), "fixed generation time (RFC3339)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *count <= 0 {
		return fmt.Errorf("-count must be positive, got %d", *count)
	}
	now, err := time.Parse(time.RFC3339, *nowFlag)
	if err != nil {
		return fmt.Errorf("parse -now: %w", err)
	}

	// Fixed clock for reproducible event times.
	clock := clockwork.NewFakeClockAt(now.UTC())
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	events := generate(clock, rng, *count)
	if err := writeFeed(*out, clock.Now(), events); err != nil {
		return err
	}
	log.Printf("wrote %d events to %s", len(events), *out)

	printStats(events, clock.Now())
	return nil
}

// generate returns n events within the last 30 days of clock, newest first.
func generate(clock clockwork.Clock, rng *rand.Rand, n int) []domain.Event {
	now := clock.Now()
	events := make([]domain.Event, 0, n)
	for i := range n {
		r := regions[rng.IntN(len(regions))]
		age := time.Duration(rng.Float64() * float64(30*24*time.Hour)).Truncate(time.Second)

		id := fmt.Sprintf("gm%08d", i+1)
		e := domain.Event{
			ID:         id,
			Place:      fmt.Sprintf("%d km %s of %s", 2+rng.IntN(150), compass[rng.IntN(len(compass))], r.place),
			OccurredAt: now.Add(-age),
			Latitude:   round(r.lat+rng.NormFloat64()*0.5, 4),
			Longitude:  round(r.lon+rng.NormFloat64()*0.5, 4),
			DepthKM:    round(2+rng.ExpFloat64()*25, 2),
			DetailURL:  "https://earthquake.usgs.gov/earthquakes/eventpage/" + id,
		}
		// Roughly one in fifteen events has no magnitude yet.
		if rng.IntN(15) != 0 {
			mag := round(min(2.0+rng.ExpFloat64()*0.9, 8.6), 1)
			e.Magnitude = domain.Mag(mag)
			e.AlertLevel = alertFor(mag)
			e.Tsunami = r.coastal && mag >= 6.5
		}
		events = append(events, e)
	}

	slices.SortFunc(events, func(a, b domain.Event) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return events
}

var compass = []string{"N", "NNE", "NE", "E", "SE", "S", "SW", "W", "NW"}

// alertFor approximates the PAGER alert USGS attaches to larger events.
func alertFor(mag float64) domain.AlertLevel {
	switch {
	case mag >= 7.5:
		return domain.AlertRed
	case mag >= 7.0:
		return domain.AlertOrange
	case mag >= 6.3:
		return domain.AlertYellow
	case mag >= 5.5:
		return domain.AlertGreen
	default:
		return domain.AlertNone
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeFeed(path string, generated time.Time, events []domain.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := usgs.Encode(f, "Generated Earthquakes, Past Month", generated, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// statsResult holds aggregated counts for printStats reporting.
type statsResult struct {
	byFeed     map[string]int
	byBand     map[string]int
	byAlert    map[domain.AlertLevel]int
	byRegion   map[string]int
	unsized    int
	tsunami    int
	mag5plus   int
	japanCount int
}

func collectStats(events []domain.Event, now time.Time) statsResult {
	s := statsResult{
		byFeed:   map[string]int{},
		byBand:   map[string]int{},
		byAlert:  map[domain.AlertLevel]int{},
		byRegion: map[string]int{},
	}
	for i := range events {
		e := &events[i]
		s.byFeed[usgs.FeedFor(now.Sub(e.OccurredAt))]++
		for _, r := range regions {
			if containsFold(e.Place, r.place) {
				s.byRegion[r.place]++
			}
		}
		if containsFold(e.Place, "japan") {
			s.japanCount++
		}
		if e.Tsunami {
			s.tsunami++
		}
		if !e.HasMagnitude() {
			s.unsized++
			continue
		}
		s.byAlert[e.AlertLevel]++
		s.byBand[band(*e.Magnitude)]++
		if *e.Magnitude >= 5 {
			s.mag5plus++
		}
	}
	return s
}

func band(mag float64) string {
	switch {
	case mag < 3:
		return "<3"
	case mag < 4:
		return "3-4"
	case mag < 5:
		return "4-5"
	case mag < 6:
		return "5-6"
	default:
		return "6+"
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type regionCount struct {
	place string
	count int
}

func printStats(events []domain.Event, now time.Time) {
	stats := collectStats(events, now)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (unsized %d)\n", len(events), stats.unsized)
	fmt.Printf("By feed age: hour=%d, day=%d, week=%d, month=%d\n",
		stats.byFeed[usgs.FeedHour], stats.byFeed[usgs.FeedDay],
		stats.byFeed[usgs.FeedWeek], stats.byFeed[usgs.FeedMonth])
	fmt.Printf("By magnitude: <3=%d, 3-4=%d, 4-5=%d, 5-6=%d, 6+=%d\n",
		stats.byBand["<3"], stats.byBand["3-4"], stats.byBand["4-5"], stats.byBand["5-6"], stats.byBand["6+"])
	fmt.Printf("By alert: none=%d, green=%d, yellow=%d, orange=%d, red=%d\n",
		stats.byAlert[domain.AlertNone], stats.byAlert[domain.AlertGreen], stats.byAlert[domain.AlertYellow],
		stats.byAlert[domain.AlertOrange], stats.byAlert[domain.AlertRed])
	fmt.Printf("Magnitude >= 5: %d\n", stats.mag5plus)
	fmt.Printf("Tsunami flagged: %d\n", stats.tsunami)
	fmt.Printf("Place contains \"japan\": %d\n", stats.japanCount)

	rc := make([]regionCount, 0, len(stats.byRegion))
	for p, c := range stats.byRegion {
		rc = append(rc, regionCount{p, c})
	}
	sort.Slice(rc, func(i, j int) bool {
		if rc[i].count != rc[j].count {
			return rc[i].count > rc[j].count
		}
		return rc[i].place < rc[j].place
	})
	fmt.Printf("Regions (%d):", len(rc))
	for _, r := range rc {
		fmt.Printf(" %q=%d", r.place, r.count)
	}
	fmt.Println()
}
