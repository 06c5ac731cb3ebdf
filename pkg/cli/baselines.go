package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
)

func newBaselinesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "baselines",
		Aliases: []string{"baseline"},
		Short:   "Manage stored baselines",
	}
	cmd.AddCommand(
		newBaselinesPushCommand(a),
		newBaselinesListCommand(a),
		newBaselinesGetCommand(a),
		newBaselinesDeleteCommand(a),
	)
	return cmd
}

func newBaselinesPushCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "push <dir|file>",
		Short: "Store a baseline from a descriptor directory or file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("path does not exist: %w", err)
			}
			var doc *descriptor.BaselineDocument
			if info.IsDir() {
				doc, err = descriptor.LoadDir(args[0])
			} else {
				doc, err = descriptor.ParseFile(args[0])
			}
			if err != nil {
				return err
			}
			if name != "" {
				doc.Name = name
			}
			if err := doc.Validate(); err != nil {
				return err
			}

			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			stored, err := store.PutBaseline(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("failed to push %s: %w", doc.Name, err)
			}
			if a.format == "json" {
				return writeJSON(cmd.OutOrStdout(), stored)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s (%d components, fingerprint %s)\n", stored.Name, stored.Components, stored.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Baseline name (default: from baseline.yaml or the directory name)")
	return cmd
}

func newBaselinesListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored baselines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			infos, err := store.ListBaselines(cmd.Context())
			if err != nil {
				return err
			}
			if a.format == "json" {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCOMPONENTS\tUPDATED\tFINGERPRINT")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Name, info.Components, info.UpdatedAt.Format(time.RFC3339), shortFingerprint(info.Fingerprint))
			}
			return tw.Flush()
		},
	}
}

func newBaselinesGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored baseline as YAML, or JSON with --format json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			doc, err := store.GetBaseline(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("baseline %s: %w", args[0], err)
			}
			if a.format == "json" {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			data, err := descriptor.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newBaselinesDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.DeleteBaseline(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("baseline %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
