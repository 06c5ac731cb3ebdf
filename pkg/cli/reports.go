package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/storage"
)

func newReportsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Inspect stored comparison reports",
	}
	cmd.AddCommand(newReportsListCommand(a), newReportsGetCommand(a))
	return cmd
}

func newReportsListCommand(a *app) *cobra.Command {
	var filter storage.ReportFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			summaries, err := store.ListReports(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if a.format == "json" {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBEFORE\tAFTER\tPASSED\tDELTAS\tCREATED")
			for _, s := range summaries {
				after := s.After
				if s.Component != "" {
					after += "/" + s.Component
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\n", s.ID, s.Before, after, s.Passed, s.Deltas, s.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Baseline, "baseline", "", "Only reports involving this baseline")
	cmd.Flags().IntVar(&filter.Limit, "limit", storage.DefaultReportLimit, "Maximum number of reports")
	return cmd
}

func newReportsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			r, err := store.GetReport(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("report %s: %w", args[0], err)
			}
			return a.writeReport(cmd.OutOrStdout(), r)
		},
	}
}
