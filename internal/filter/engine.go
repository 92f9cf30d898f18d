// Package filter applies a domain.FilterSpec to a feed snapshot.
package filter

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/quake-query-service/internal/domain"
)

// Apply keeps the events that satisfy spec as of now, orders them most recent
// first and truncates to spec.Limit. The input slice is not modified.
//
// The spec is normalized before use; an error wrapping
// domain.ErrInvalidFilterState means it still broke an invariant afterwards.
func Apply(events []domain.Event, spec domain.FilterSpec, now time.Time) (domain.FilteredResult, error) {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		return domain.FilteredResult{}, fmt.Errorf("apply filter: %w", err)
	}

	cutoff := now.Add(-spec.Window())
	needle := strings.ToLower(strings.TrimSpace(spec.Location))

	matched := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if matches(e, spec, cutoff, needle) {
			matched = append(matched, e)
		}
	}

	slices.SortFunc(matched, compareEvents)

	total := len(matched)
	if total > spec.Limit {
		matched = matched[:spec.Limit]
	}

	return domain.FilteredResult{
		Events: matched,
		Total:  total,
		Spec:   spec,
	}, nil
}

func matches(e domain.Event, spec domain.FilterSpec, cutoff time.Time, needle string) bool {
	if e.OccurredAt.Before(cutoff) {
		return false
	}
	if spec.MagnitudeMin != nil || spec.MagnitudeMax != nil {
		if e.Magnitude == nil {
			return false
		}
		if spec.MagnitudeMin != nil && *e.Magnitude < *spec.MagnitudeMin {
			return false
		}
		if spec.MagnitudeMax != nil && *e.Magnitude > *spec.MagnitudeMax {
			return false
		}
	}
	if needle != "" && !strings.Contains(strings.ToLower(e.Place), needle) {
		return false
	}
	return true
}

// compareEvents orders by time descending, then magnitude descending with
// unsized events last, then ID ascending.
func compareEvents(a, b domain.Event) int {
	if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
		return c
	}
	if c := compareMagnitudeDesc(a.Magnitude, b.Magnitude); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareMagnitudeDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}
