// Package storage persists baseline descriptors and comparison reports.
//
// # Overview
//
// The Store interface is composed from focused capabilities:
//
//   - BaselineReader: GetBaseline, ListBaselines
//   - BaselineWriter: PutBaseline, DeleteBaseline
//   - ReportStore: SaveReport, GetReport, ListReports
//   - HealthChecker: HealthCheck
//
// Baselines are stored as validated descriptor documents (see package descriptor) and are
// keyed by name. Putting a baseline with an existing name replaces it. Reports are keyed by
// their ID and listed newest first.
//
// # Backends
//
// FileSystemStorage keeps everything under a root directory:
//
//	<root>/baselines/<name>.yaml
//	<root>/reports/<id>.json
//
// The postgres sub-package provides a SQL backend with an optional Redis read cache and an
// optional S3 archive. It registers itself under the name "postgres" when imported:
//
//	import _ "github.com/platinummonkey/apidelta/pkg/storage/postgres"
//
//	store, err := storage.NewFromConfig(ctx, cfg)
//
// # Errors
//
// Missing baselines and reports are reported with ErrNotFound, and unusable names with
// ErrInvalidName. Both are wrapped, so check them with errors.Is.
//
// # Metrics
//
// Instrument wraps any Store and records each call in the apidelta_storage_* metrics.
package storage
