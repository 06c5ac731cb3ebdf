package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/apidelta/pkg/api"
	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/observability"
)

// NewHTTPServer builds the API server for rt
func NewHTTPServer(rt *Runtime) *http.Server {
	opts := []api.Option{
		api.WithHealth(rt.Health),
		api.WithLogger(rt.Logger),
		api.WithTracer(observability.Tracer()),
		api.WithMaxBodyBytes(rt.Config.Server.MaxBodyBytes),
	}
	if rt.Metrics != nil {
		opts = append(opts, api.WithMetrics(rt.Metrics, rt.Registry))
	}
	if rt.Limiter != nil {
		opts = append(opts, api.WithRateLimit(rt.Limiter))
	}
	if rt.Webhooks != nil {
		opts = append(opts, api.WithNotifier(rt.Webhooks))
	}

	cfg := rt.Config.Server
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewServer(rt.Checker, opts...),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Run serves the API until ctx is canceled or the process is signaled, then shuts down
// gracefully
func Run(ctx context.Context, cfg *config.Config, logger *observability.Logger, version string) error {
	rt, err := NewRuntime(ctx, cfg, logger, version)
	if err != nil {
		return err
	}

	srv := NewHTTPServer(rt)
	sm := observability.NewShutdownManager(logger, srv, cfg.Server.ShutdownTimeout)
	rt.RegisterShutdown(sm)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(logger, "http server")
		logger.WithField("addr", srv.Addr).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API server failed")
			serveErr <- err
			cancel()
		}
	}()

	shutdownErr := sm.WaitForSignal(waitCtx)
	select {
	case err := <-serveErr:
		return err
	default:
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	logger.Info("API server stopped")
	return nil
}
