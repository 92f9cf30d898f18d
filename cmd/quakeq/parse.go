package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-query-service/internal/format"
	"github.com/couchcryptid/quake-query-service/internal/query"
)

func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <question>",
		Short: "Show the filter a question parses to, without fetching data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := query.Parse(strings.Join(args, " "))
			out := cmd.OutOrStdout()

			if opts.outputJSON {
				return writeJSON(out, spec)
			}

			location := spec.Location
			if location == "" {
				location = "anywhere"
			}
			headerColor.Fprintln(out, "Filter")
			fmt.Fprintf(out, "  magnitude: %s\n", format.MagnitudeRange(spec))
			fmt.Fprintf(out, "  window:    %s\n", format.Window(spec.SinceHours))
			fmt.Fprintf(out, "  location:  %s\n", location)
			fmt.Fprintf(out, "  limit:     %d\n", spec.Limit)
			return nil
		},
	}
}
