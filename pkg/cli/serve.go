package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/server"
)

func newServeCommand(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			logger := observability.NewLogger(cfg.Observability.LogLevel, cmd.ErrOrStderr())
			return server.Run(cmd.Context(), cfg, logger, Version)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides server.port)")
	return cmd
}
