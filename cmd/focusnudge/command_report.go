package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/focusnudge/focusnudge/internal/journal"
	"github.com/focusnudge/focusnudge/internal/models"
)

func newReportCmd() *cobra.Command {
	var (
		since  time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the nudges sent by the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			query := url.Values{}
			if since > 0 {
				query.Set("since", since.String())
			}
			if !asJSON {
				query.Set("format", "text")
			}

			out := cmd.OutOrStdout()
			if err := getJSON(cmd.Context(), cfg, "/api/report?"+query.Encode(), out); err != nil {
				fmt.Fprintln(os.Stderr, "The report is kept in memory by the daemon; start it with 'focusnudge start'.")
				return err
			}
			if asJSON {
				return nil
			}

			var failures []*models.ErrorLog
			if err := getJSON(cmd.Context(), cfg, "/api/errors?limit=10", &failures); err != nil {
				return err
			}
			fmt.Fprint(out, journal.FormatFailuresText(failures))
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "Only count nudges from this long ago (default: since the daemon started)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
