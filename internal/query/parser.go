// Package query turns free-form text into a domain.FilterSpec.
//
// Each criterion (magnitude bounds, time window, location, limit) has its own
// ordered rule list. Rules are tried most specific first and the first rule
// that yields a usable value wins for that criterion. Text no rule recognizes
// is ignored; Parse never fails.
package query

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/couchcryptid/quake-query-service/internal/domain"
)

const num = `(\d+(?:\.\d+)?)`

// rule is one pattern for a single criterion. group selects the capture that
// holds the value.
type rule struct {
	re    *regexp.Regexp
	group int
	// yields drops matches that overlap an upper-bound phrase, so "below
	// magnitude 4" is never read as a lower bound.
	yields bool
}

// betweenRe is shared by both bound lists: group 1 is the lower bound and
// group 2 the upper.
var betweenRe = regexp.MustCompile(`(?i)\bbetween\s+(?:magnitude\s*|mag\s*|m\s*)?` + num + `\s+(?:and|to)\s+(?:magnitude\s*|mag\s*|m\s*)?` + num)

var minMagnitudeRules = []rule{
	{re: betweenRe, group: 1},
	{re: regexp.MustCompile(`(?:>\s*=?|≥)\s*` + num), group: 1},
	{re: regexp.MustCompile(`(?i)\b(?:at\s+least|minimum(?:\s+of)?|min)\s*(?:magnitude\s*|mag\s*|m\s*)?` + num), group: 1},
	{re: regexp.MustCompile(num + `\s*\+`), group: 1},
	{re: regexp.MustCompile(`(?i)` + num + `\s+or\s+(?:higher|above|more|greater|bigger|stronger)\b`), group: 1},
	{re: regexp.MustCompile(`(?i)\b(?:above|over|greater\s+than|higher\s+than|bigger\s+than|stronger\s+than|exceeding)\s+(?:magnitude\s*|mag\s*|m\s*)?` + num), group: 1},
	// A bare "m" must touch its number ("m5") so "I'm 30" is not a magnitude.
	{re: regexp.MustCompile(`(?i)(?:\b(?:magnitude|mag)\s*|\bm)` + num), group: 1, yields: true},
}

var maxMagnitudeRules = []rule{
	{re: betweenRe, group: 2},
	{re: regexp.MustCompile(`(?:<\s*=?|≤)\s*` + num), group: 1},
	{re: regexp.MustCompile(`(?i)\b(?:at\s+most|maximum(?:\s+of)?|max|up\s+to|no\s+more\s+than)\s*(?:magnitude\s*|mag\s*|m\s*)?` + num), group: 1},
	{re: regexp.MustCompile(`(?i)\b(?:below|under|less\s+than|lower\s+than|smaller\s+than|weaker\s+than)\s+(?:magnitude\s*|mag\s*|m\s*)?` + num), group: 1},
	{re: regexp.MustCompile(`(?i)` + num + `\s+or\s+(?:lower|less|below|smaller|weaker|under)\b`), group: 1},
}

// notMagnitudeRe matches what may follow a number that is a duration or a
// count rather than a magnitude ("over 3 days", "up to 5 results").
var notMagnitudeRe = regexp.MustCompile(`(?i)^\s*(?:minutes?|mins?|hours?|hrs?|h|days?|weeks?|months?|earthquakes?|quakes?|events?|results?|items?|km|kilometers?|miles?)\b`)

// Parse converts text into a normalized FilterSpec. Criteria that are absent
// or unrecognized keep their defaults.
func Parse(text string) domain.FilterSpec {
	spec := domain.DefaultFilterSpec()

	spec.MagnitudeMin = minMagnitude(text)
	spec.MagnitudeMax = maxMagnitude(text)
	if h, ok := sinceHours(text); ok {
		spec.SinceHours = h
	}
	spec.Location = location(text)
	if n, ok := limit(text); ok {
		spec.Limit = n
	}

	return spec.Normalize()
}

// minMagnitude extracts an "at least N" bound, or nil.
func minMagnitude(text string) *float64 {
	upper := spans(text, maxMagnitudeRules)
	return firstMagnitude(text, minMagnitudeRules, upper)
}

// maxMagnitude extracts an "at most N" bound, or nil.
func maxMagnitude(text string) *float64 {
	return firstMagnitude(text, maxMagnitudeRules, nil)
}

func firstMagnitude(text string, rules []rule, masked [][2]int) *float64 {
	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*r.group], m[2*r.group+1]
			if start < 0 {
				continue
			}
			if r.yields && overlaps(m[0], m[1], masked) {
				continue
			}
			if notMagnitudeRe.MatchString(text[m[1]:]) {
				continue
			}
			v, err := strconv.ParseFloat(text[start:end], 64)
			if err != nil {
				continue
			}
			return domain.Mag(v)
		}
	}
	return nil
}

// spans returns the byte ranges of every match of every rule.
func spans(text string, rules []rule) [][2]int {
	var out [][2]int
	for _, r := range rules {
		if r.re == betweenRe {
			continue
		}
		for _, m := range r.re.FindAllStringIndex(text, -1) {
			if notMagnitudeRe.MatchString(text[m[1]:]) {
				continue
			}
			out = append(out, [2]int{m[0], m[1]})
		}
	}
	return out
}

func overlaps(start, end int, ranges [][2]int) bool {
	for _, r := range ranges {
		if start < r[1] && r[0] < end {
			return true
		}
	}
	return false
}

// windowRule maps a time phrase to a lookback in hours.
type windowRule struct {
	re    *regexp.Regexp
	hours func(n float64) float64
}

const lookback = `(?i)\b(?:last|past|previous|prior|within|over)\s+`

func fixed(h float64) func(float64) float64 { return func(float64) float64 { return h } }

// Numeric phrases come first so "today, last 6 hours" resolves to 6.
var windowRules = []windowRule{
	{re: regexp.MustCompile(lookback + num + `\s*(?:hours?|hrs?|h)\b`), hours: func(n float64) float64 { return n }},
	{re: regexp.MustCompile(lookback + num + `\s*(?:minutes?|mins?)\b`), hours: func(n float64) float64 { return n / 60 }},
	{re: regexp.MustCompile(lookback + num + `\s*days?\b`), hours: func(n float64) float64 { return n * 24 }},
	{re: regexp.MustCompile(lookback + num + `\s*weeks?\b`), hours: func(n float64) float64 { return n * 168 }},
	{re: regexp.MustCompile(`(?i)\b(?:last|past|this|previous)\s+hour\b`), hours: fixed(1)},
	{re: regexp.MustCompile(`(?i)\b(?:last|past|this|previous)\s+month\b`), hours: fixed(720)},
	{re: regexp.MustCompile(`(?i)\bweek\b`), hours: fixed(168)},
	{re: regexp.MustCompile(`(?i)\b(?:today|tonight|last\s+day|past\s+day)\b`), hours: fixed(24)},
}

// sinceHours extracts the lookback window. ok is false when no phrase gives a
// positive window.
func sinceHours(text string) (float64, bool) {
	for _, r := range windowRules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			n := 0.0
			if len(m) > 1 && m[1] != "" {
				v, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					continue
				}
				n = v
			}
			if h := r.hours(n); h > 0 {
				return h, true
			}
		}
	}
	return 0, false
}

var limitRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:show|list|get|give|display|fetch|find|top)\s+(?:me\s+)?(?:the\s+)?(?:top\s+|latest\s+|last\s+|first\s+|most\s+recent\s+)?` + num),
	regexp.MustCompile(`(?i)\b` + num + `\s+(?:most\s+)?(?:recent|latest|newest)\b`),
	regexp.MustCompile(`(?i)\b(?:last|latest|recent|newest)\s+` + num),
}

// notCountRe matches what may follow a number that is not a result count.
var notCountRe = regexp.MustCompile(`(?i)^\s*(?:\+|%|or\s|minutes?\b|mins?\b|hours?\b|hrs?\b|h\b|days?\b|weeks?\b|months?\b|km\b|miles?\b)`)

// limit extracts a result count. Non-integer and non-positive captures are
// not usable and scanning moves on.
func limit(text string) (int, bool) {
	for _, re := range limitRules {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if notCountRe.MatchString(text[m[1]:]) {
				continue
			}
			n, err := strconv.Atoi(text[m[2]:m[3]])
			if err != nil || n <= 0 {
				continue
			}
			return n, true
		}
	}
	return 0, false
}

var (
	locationRe = regexp.MustCompile(`(?i)\b(?:in|near|around)\s+`)

	// locationStops end a location phrase.
	locationStops = map[string]bool{
		"last": true, "past": true, "previous": true, "prior": true, "this": true,
		"today": true, "tonight": true, "yesterday": true, "within": true, "since": true,
		"during": true, "over": true, "above": true, "below": true, "under": true,
		"with": true, "magnitude": true, "mag": true, "greater": true, "less": true,
		"more": true, "higher": true, "lower": true, "between": true, "and": true,
		"or": true, "in": true, "near": true, "around": true, "for": true, "from": true,
		"to": true, "at": true, "show": true, "list": true, "please": true,
		"earthquakes": true, "earthquake": true, "quakes": true, "quake": true,
		"events": true, "hour": true, "hours": true, "day": true, "days": true,
		"week": true, "weeks": true, "month": true, "months": true, "recent": true,
		"latest": true, "newest": true, "that": true, "which": true, "where": true,
	}
)

const maxLocationWords = 4

// location extracts the phrase after the first "in", "near" or "around" that
// yields at least one place word. The original casing is kept.
func location(text string) string {
	for _, m := range locationRe.FindAllStringIndex(text, -1) {
		if phrase := locationPhrase(text[m[1]:]); phrase != "" {
			return phrase
		}
	}
	return ""
}

func locationPhrase(rest string) string {
	var words []string
	for i, tok := range strings.Fields(rest) {
		word := strings.TrimRight(tok, ".,!?;:")
		terminal := strings.ContainsAny(tok[len(word):], ".!?;:")
		lower := strings.ToLower(word)

		if i == 0 && lower == "the" {
			continue
		}
		if word == "" || !startsWithLetter(word) || locationStops[lower] || isMagnitudeToken(lower) {
			break
		}
		// Keep an inner comma so "Tokyo, Japan" survives.
		if strings.HasSuffix(tok, ",") && !terminal {
			word += ","
		}
		words = append(words, word)
		if terminal || len(words) == maxLocationWords {
			break
		}
	}
	return strings.TrimRight(strings.Join(words, " "), ",")
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r)
	}
	return false
}

// isMagnitudeToken reports tokens like "m5" or "m6.2+".
func isMagnitudeToken(s string) bool {
	return len(s) > 1 && s[0] == 'm' && s[1] >= '0' && s[1] <= '9'
}
