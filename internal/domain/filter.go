package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultSinceHours = 24.0
	DefaultLimit      = 10
	MaxLimit          = 200

	// MaxSinceHours is the span of the longest upstream summary feed (30 days).
	MaxSinceHours = 720.0
)

// ErrInvalidFilterState signals a FilterSpec that still breaks its invariants
// after normalization.
var ErrInvalidFilterState = errors.New("invalid filter state")

// FilterSpec is the structured form of a natural-language query. Nil bounds
// and an empty Location mean the criterion is not applied.
type FilterSpec struct {
	MagnitudeMin *float64 `json:"magnitude_min,omitempty"`
	MagnitudeMax *float64 `json:"magnitude_max,omitempty"`
	SinceHours   float64  `json:"since_hours"`
	Location     string   `json:"location,omitempty"`
	Limit        int      `json:"limit"`
}

// DefaultFilterSpec returns a spec with the documented defaults: a 24 hour
// window, ten results and no magnitude or location criteria.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{SinceHours: DefaultSinceHours, Limit: DefaultLimit}
}

// Window returns the lookback as a duration.
func (s FilterSpec) Window() time.Duration {
	return time.Duration(s.SinceHours * float64(time.Hour))
}

// Normalize returns a copy with swapped bounds if min > max and defaults in
// place of non-positive window or limit values. Window and limit are clamped to
// MaxSinceHours and MaxLimit. Bound pointers are copied so
// the result never aliases the receiver.
func (s FilterSpec) Normalize() FilterSpec {
	out := s
	if s.MagnitudeMin != nil {
		out.MagnitudeMin = Mag(*s.MagnitudeMin)
	}
	if s.MagnitudeMax != nil {
		out.MagnitudeMax = Mag(*s.MagnitudeMax)
	}
	if out.MagnitudeMin != nil && out.MagnitudeMax != nil && *out.MagnitudeMin > *out.MagnitudeMax {
		out.MagnitudeMin, out.MagnitudeMax = out.MagnitudeMax, out.MagnitudeMin
	}
	if !(out.SinceHours > 0) || math.IsInf(out.SinceHours, 0) {
		out.SinceHours = DefaultSinceHours
	}
	if out.SinceHours > MaxSinceHours {
		out.SinceHours = MaxSinceHours
	}
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.Limit > MaxLimit {
		out.Limit = MaxLimit
	}
	return out
}

// Validate checks the invariants the filter engine relies on.
func (s FilterSpec) Validate() error {
	if s.MagnitudeMin != nil && !isFinite(*s.MagnitudeMin) {
		return fmt.Errorf("%w: magnitude_min %v is not finite", ErrInvalidFilterState, *s.MagnitudeMin)
	}
	if s.MagnitudeMax != nil && !isFinite(*s.MagnitudeMax) {
		return fmt.Errorf("%w: magnitude_max %v is not finite", ErrInvalidFilterState, *s.MagnitudeMax)
	}
	if s.MagnitudeMin != nil && s.MagnitudeMax != nil && *s.MagnitudeMin > *s.MagnitudeMax {
		return fmt.Errorf("%w: magnitude_min %g > magnitude_max %g", ErrInvalidFilterState, *s.MagnitudeMin, *s.MagnitudeMax)
	}
	if !(s.SinceHours > 0) || math.IsInf(s.SinceHours, 0) {
		return fmt.Errorf("%w: since_hours %v must be positive", ErrInvalidFilterState, s.SinceHours)
	}
	if s.SinceHours > MaxSinceHours {
		return fmt.Errorf("%w: since_hours %v exceeds %v", ErrInvalidFilterState, s.SinceHours, MaxSinceHours)
	}
	if s.Limit < 1 {
		return fmt.Errorf("%w: limit %d must be at least 1", ErrInvalidFilterState, s.Limit)
	}
	return nil
}

// FilteredResult is the ordered, truncated match set plus the number of
// matches before truncation and the spec that produced it.
type FilteredResult struct {
	Events []Event    `json:"events"`
	Total  int        `json:"total"`
	Spec   FilterSpec `json:"spec"`
}

// Shown is the number of events kept after truncation.
func (r FilteredResult) Shown() int { return len(r.Events) }

// Truncated reports whether matches were dropped by the limit.
func (r FilteredResult) Truncated() bool { return r.Total > len(r.Events) }

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
