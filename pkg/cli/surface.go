package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/report"
)

func newSurfaceCommand(a *app) *cobra.Command {
	var diff string
	cmd := &cobra.Command{
		Use:   "surface <baseline>",
		Short: "List the visible API surface of a baseline",
		Long: `List the types and members of a baseline that pass the visibility filter.

With --diff, print a unified diff from the other baseline's surface to this one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.release()
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			loader, err := descriptor.NewLoader(descriptor.DefaultCacheSize)
			if err != nil {
				return err
			}
			build := func(ref string) (*model.Baseline, error) {
				doc, err := a.resolve(cmd, ref)
				if err != nil {
					return nil, err
				}
				return loader.Build(doc)
			}

			b, err := build(args[0])
			if err != nil {
				return err
			}
			mask := cfg.Comparison.Visibility
			out := cmd.OutOrStdout()

			if diff != "" {
				other, err := build(diff)
				if err != nil {
					return err
				}
				text, err := report.SurfaceDiff(other, b, mask)
				if err != nil {
					return err
				}
				if a.format == "json" {
					return writeJSON(out, map[string]string{"diff": text})
				}
				_, err = fmt.Fprint(out, text)
				return err
			}

			lines, err := report.SurfaceListing(b, mask)
			if err != nil {
				return err
			}
			if a.format == "json" {
				return writeJSON(out, lines)
			}
			if len(lines) == 0 {
				return nil
			}
			_, err = fmt.Fprintln(out, strings.Join(lines, "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&diff, "diff", "", "Baseline to diff the surface against")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
