package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/fatih/color"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-query-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/observability"
)

// CLI output formatters
var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

// options holds the persistent flags shared by all subcommands.
type options struct {
	feedFile   string
	baseURL    string
	timeout    time.Duration
	now        string
	outputJSON bool
	noColor    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "quakeq",
		Short: "Query recent earthquakes in plain English",
		Long: `Query the USGS real-time earthquake feed with natural-language questions.

Questions may mention a magnitude range, a time window, a location and a
result count, e.g. "show 5 earthquakes above magnitude 5 near Japan this week".`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.feedFile, "feed-file", "", "Read events from a GeoJSON file instead of the live feed")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url",
		sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary"),
		"USGS summary feed base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Feed request timeout")
	root.PersistentFlags().StringVar(&opts.now, "now", "", "Evaluate time windows relative to this RFC3339 instant")
	root.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log feed activity to stderr")

	root.AddCommand(newAskCmd(opts))
	root.AddCommand(newParseCmd(opts))

	return root
}

// clock returns a real clock, or a fixed one when --now is set.
func (o *options) clock() (clockwork.Clock, error) {
	if o.now == "" {
		return clockwork.NewRealClock(), nil
	}
	t, err := time.Parse(time.RFC3339, o.now)
	if err != nil {
		return nil, fmt.Errorf("invalid --now: %w", err)
	}
	return clockwork.NewFakeClockAt(t), nil
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// source returns the file source when --feed-file is set, otherwise the live
// feed client.
func (o *options) source(metrics *observability.Metrics, logger *slog.Logger) domain.EventSource {
	if o.feedFile != "" {
		return usgs.NewFileSource(o.feedFile)
	}
	return usgs.NewClient(o.baseURL, o.timeout, metrics, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
