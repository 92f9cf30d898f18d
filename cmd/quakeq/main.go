// Command quakeq answers earthquake questions from the terminal.
//
// Usage:
//
//	quakeq ask "magnitude 5+ near Japan this week"
//	quakeq ask --feed-file testdata/all_day.geojson --now 2024-04-26T12:00:00Z "show 3 quakes"
//	quakeq parse "between 4 and 6 in the last 3 days"
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
