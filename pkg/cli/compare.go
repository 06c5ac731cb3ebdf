package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/report"
)

func newCompareCommand(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "compare <before> <after>",
		Short: "Compare two baselines and print the report",
		Long: `Compare two baselines and print every API change with its compatibility.

Each baseline is a descriptor directory, a descriptor file or the name of a stored baseline.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			r, err := a.compare(cmd, args[0], args[1], save)
			if err != nil {
				return err
			}
			return a.writeReport(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store the report")
	return cmd
}

func newCheckCommand(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "check <before> <after>",
		Short: "Compare two baselines and exit non-zero on incompatible changes",
		Long: `Compare two baselines like compare, then exit with status 1 when the changes are
incompatible or a component version does not follow them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			r, err := a.compare(cmd, args[0], args[1], save)
			if err != nil {
				return err
			}
			if err := a.writeReport(cmd.OutOrStdout(), r); err != nil {
				return err
			}
			if !r.Passed() {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store the report")
	return cmd
}

func (a *app) compare(cmd *cobra.Command, beforeRef, afterRef string, save bool) (*report.Report, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, err
	}
	chk, err := a.newChecker(cmd, cfg, save)
	if err != nil {
		return nil, err
	}
	before, err := a.resolve(cmd, beforeRef)
	if err != nil {
		return nil, err
	}
	after, err := a.resolve(cmd, afterRef)
	if err != nil {
		return nil, err
	}
	return chk.CompareDocuments(cmd.Context(), before, after, a.compareOptions(cfg))
}
