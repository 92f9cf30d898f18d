package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/observability"
	"github.com/couchcryptid/quake-query-service/internal/router"
)

var errUnavailable = errors.New("earthquake data unavailable")

type askOutput struct {
	Kind   router.Kind       `json:"kind"`
	Text   string            `json:"text"`
	Total  int               `json:"total"`
	Spec   domain.FilterSpec `json:"spec"`
	Events []domain.Event    `json:"events"`
}

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question about recent earthquakes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := opts.clock()
			if err != nil {
				return err
			}
			logger := opts.logger(cmd.ErrOrStderr())
			metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())

			r := router.New(opts.source(metrics, logger), nil, clock, logger, metrics)

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*opts.timeout)
			defer cancel()

			resp, err := r.Handle(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.outputJSON {
				if err := writeJSON(out, askOutput{
					Kind:   resp.Kind,
					Text:   resp.Text,
					Total:  resp.Total,
					Spec:   resp.Spec,
					Events: resp.Events,
				}); err != nil {
					return err
				}
			} else {
				renderResponse(out, resp)
			}

			if resp.Kind == router.KindUnavailable {
				return errUnavailable
			}
			return nil
		},
	}
}

// renderResponse prints the reply with its first line highlighted.
func renderResponse(w io.Writer, resp router.Response) {
	header, body, _ := strings.Cut(resp.Text, "\n")
	switch resp.Kind {
	case router.KindUnavailable:
		warningColor.Fprintln(w, header)
	case router.KindQuery:
		headerColor.Fprintln(w, header)
	default:
		infoColor.Fprintln(w, header)
	}
	if body != "" {
		fmt.Fprintln(w, body)
	}
}
