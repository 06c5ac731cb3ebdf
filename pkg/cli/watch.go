package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/server"
	"github.com/platinummonkey/apidelta/pkg/watcher"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		schedule string
		debounce time.Duration
		push     bool
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir> <reference>",
		Short: "Re-check a descriptor directory against a reference whenever it changes",
		Long: `Watch a descriptor directory and compare it against a reference baseline after every
change and on an optional cron schedule. The reference is a stored baseline name or a
descriptor directory or file. Without arguments the watcher section of the config is used.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			opts := watcher.OptionsFromConfig(cfg)
			if len(args) > 0 {
				opts.Dir = args[0]
			}
			if len(args) > 1 {
				opts.Reference = args[1]
			}
			if schedule != "" {
				opts.Schedule = schedule
			}
			if debounce > 0 {
				opts.Debounce = debounce
			}
			opts.Push = push

			logger := observability.NewLogger(cfg.Observability.LogLevel, cmd.ErrOrStderr())
			rt, err := server.NewRuntime(cmd.Context(), cfg, logger, Version)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				_ = rt.Close(ctx)
			}()

			log := watcher.NewLogger(cfg.Watcher.LogFormat, cfg.Observability.LogLevel, cmd.ErrOrStderr())
			w, err := watcher.New(rt.Checker, opts, log, watcher.WithMetrics(rt.Metrics))
			if err != nil {
				return err
			}
			if once {
				r, err := w.RunOnce(cmd.Context(), watcher.TriggerManual)
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
			}
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression for periodic checks")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period after a change before checking")
	cmd.Flags().BoolVar(&push, "push", false, "Store the watched baseline after every check")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single check and exit")
	return cmd
}
