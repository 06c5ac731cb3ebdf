// Package async runs background tasks on a bounded worker pool with per-task timeouts
// and panic recovery.
//
//	pool := async.NewPool(ctx, "webhooks", 4, 64, 30*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//
//	_ = pool.Submit(ctx, func(ctx context.Context) error {
//		return deliver(ctx, event)
//	})
package async
