package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
)

// Factory opens a Store for a configuration
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Factory{
		"filesystem": func(_ context.Context, cfg Config) (Store, error) {
			return NewFileSystemStorage(cfg.FilesystemRoot)
		},
	}
)

// RegisterBackend makes a backend available to NewFromConfig. Backends that need
// drivers register themselves from their package init.
func RegisterBackend(name string, factory Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backends lists the registered backend names
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromConfig opens the backend named by cfg.Type
func NewFromConfig(ctx context.Context, cfg Config) (Store, error) {
	backendsMu.RLock()
	factory, ok := backends[cfg.Type]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage type %q (available: %v)", cfg.Type, Backends())
	}
	return factory(ctx, cfg)
}

// Instrument wraps store so every call is recorded in the storage metrics
func Instrument(store Store, metrics *observability.Metrics, backend string) Store {
	if metrics == nil {
		return store
	}
	return &instrumented{next: store, metrics: metrics, backend: backend}
}

type instrumented struct {
	next    Store
	metrics *observability.Metrics
	backend string
}

func (s *instrumented) PutBaseline(ctx context.Context, doc *descriptor.BaselineDocument) (info BaselineInfo, err error) {
	defer s.observe("put_baseline", time.Now(), &err)
	return s.next.PutBaseline(ctx, doc)
}

func (s *instrumented) GetBaseline(ctx context.Context, name string) (doc *descriptor.BaselineDocument, err error) {
	defer s.observe("get_baseline", time.Now(), &err)
	return s.next.GetBaseline(ctx, name)
}

func (s *instrumented) ListBaselines(ctx context.Context) (infos []BaselineInfo, err error) {
	defer s.observe("list_baselines", time.Now(), &err)
	infos, err = s.next.ListBaselines(ctx)
	if err == nil {
		s.metrics.BaselinesTotal.Set(float64(len(infos)))
	}
	return infos, err
}

func (s *instrumented) DeleteBaseline(ctx context.Context, name string) (err error) {
	defer s.observe("delete_baseline", time.Now(), &err)
	return s.next.DeleteBaseline(ctx, name)
}

func (s *instrumented) SaveReport(ctx context.Context, r *report.Report) (err error) {
	defer s.observe("save_report", time.Now(), &err)
	return s.next.SaveReport(ctx, r)
}

func (s *instrumented) GetReport(ctx context.Context, id string) (r *report.Report, err error) {
	defer s.observe("get_report", time.Now(), &err)
	return s.next.GetReport(ctx, id)
}

func (s *instrumented) ListReports(ctx context.Context, filter ReportFilter) (out []report.Summary, err error) {
	defer s.observe("list_reports", time.Now(), &err)
	return s.next.ListReports(ctx, filter)
}

func (s *instrumented) HealthCheck(ctx context.Context) (err error) {
	defer s.observe("health_check", time.Now(), &err)
	return s.next.HealthCheck(ctx)
}

func (s *instrumented) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveStorage(op, s.backend, start, *err)
}
