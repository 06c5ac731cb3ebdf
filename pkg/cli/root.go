package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/comparator"
	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

// Version is reported by the serve command and set at build time
var Version = "dev"

// ExitError carries a process exit code without an error message, e.g. a failed check
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// app holds the persistent flags and the lazily opened store shared by all commands
type app struct {
	configPath   string
	visibility   string
	includeMinor bool
	format       string
	verbose      bool
	logLevel     string

	cfg   *config.Config
	store storage.Store
	close func() error
}

// NewRootCommand creates the apidelta command tree
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "apidelta",
		Short:         "Compare API baselines and check compatibility",
		Long:          "apidelta compares two baselines of versioned components, reports every API change and checks that component versions follow the changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.format != "text" && a.format != "json" {
				return fmt.Errorf("invalid --format %q: must be text or json", a.format)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default: apidelta.yaml in ., ~/.apidelta or /etc/apidelta)")
	flags.StringVar(&a.visibility, "visibility", "", "Visibility filter: api, internal, private, spi, all or a comma separated list")
	flags.BoolVar(&a.includeMinor, "include-minor", false, "Report members added to final or enclosed types as compatible additions")
	flags.StringVar(&a.format, "format", "text", "Output format: text, json")
	flags.BoolVar(&a.verbose, "verbose", false, "Show informational changes")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newCompareCommand(a),
		newCheckCommand(a),
		newSurfaceCommand(a),
		newBaselinesCommand(a),
		newReportsCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
	)
	return root
}

// Execute runs the command tree with os.Args and returns the process exit code
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	return 2
}

// config loads the configuration once and applies flag overrides
func (a *app) config(cmd *cobra.Command) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("visibility") {
		vis, err := model.ParseVisibility(a.visibility)
		if err != nil {
			return nil, err
		}
		cfg.Comparison.Visibility = vis
	}
	if cmd.Flags().Changed("include-minor") {
		cfg.Comparison.IncludeMinor = a.includeMinor
	}
	if a.logLevel != "" {
		level, err := observability.ParseLogLevel(a.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Observability.LogLevel = level
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) logger(cmd *cobra.Command, cfg *config.Config) *observability.Logger {
	level := cfg.Observability.LogLevel
	if a.logLevel == "" && !a.verbose {
		level = observability.WarnLevel
	}
	return observability.NewTextLogger(level, cmd.ErrOrStderr())
}

func (a *app) compareOptions(cfg *config.Config) report.Options {
	return report.Options{
		Visibility:   cfg.Comparison.Visibility,
		IncludeMinor: cfg.Comparison.IncludeMinor,
	}
}

// openStore opens the configured store on first use
func (a *app) openStore(cmd *cobra.Command) (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFromConfig(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Type, err)
	}
	a.store = store
	if c, ok := store.(io.Closer); ok {
		a.close = c.Close
	}
	return store, nil
}

func (a *app) release() {
	if a.close != nil {
		_ = a.close()
		a.close = nil
	}
	a.store = nil
}

// resolve loads ref from a descriptor directory or file on disk, or else from the store
func (a *app) resolve(cmd *cobra.Command, ref string) (*descriptor.BaselineDocument, error) {
	if info, err := os.Stat(ref); err == nil {
		if info.IsDir() {
			return descriptor.LoadDir(ref)
		}
		return descriptor.ParseFile(ref)
	}
	store, err := a.openStore(cmd)
	if err != nil {
		return nil, err
	}
	doc, err := store.GetBaseline(cmd.Context(), ref)
	if err != nil {
		return nil, fmt.Errorf("baseline %s: %w", ref, err)
	}
	return doc, nil
}

// newChecker builds a checker. With persist set, reports are saved to the store.
func (a *app) newChecker(cmd *cobra.Command, cfg *config.Config, persist bool) (*checker.Checker, error) {
	logger := a.logger(cmd, cfg)
	cmp := comparator.New(
		comparator.WithLogger(logger),
		comparator.WithConcurrency(cfg.Comparison.Concurrency),
	)
	opts := []checker.Option{checker.WithLogger(logger)}
	if persist {
		store, err := a.openStore(cmd)
		if err != nil {
			return nil, err
		}
		opts = append(opts, checker.WithStore(store))
	}
	return checker.New(cmp, opts...)
}

func (a *app) writeReport(w io.Writer, r *report.Report) error {
	if a.format == "json" {
		return report.RenderJSON(w, r)
	}
	return report.RenderText(w, r, a.verbose)
}
