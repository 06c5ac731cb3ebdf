// Package server assembles the long running processes: it turns a config.Config into a
// Runtime (store, report cache, checker, metrics, tracing, health) and serves the HTTP API
// on top of it with graceful shutdown.
package server
