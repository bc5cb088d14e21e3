package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/focusnudge/focusnudge/internal/procsnap"
	"github.com/focusnudge/focusnudge/pkg/utils"
)

func newProcessesCmd() *cobra.Command {
	var (
		asJSON bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "processes",
		Short: "List processes sorted by CPU usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := procsnap.New(procsnap.DefaultLister(), nil).Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PID\tNAME\tCPU%\tMEM\tSTATUS\tAGE")
			for _, r := range records {
				age := "-"
				if r.ElapsedMs != nil {
					age = utils.FormatRoundedUnit(*r.ElapsedMs / 1000)
				}
				fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\t%s\n",
					r.PID, r.Name, r.CPUPercent, formatBytes(r.MemoryBytes), r.Status, age)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many processes (0 for all)")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}
