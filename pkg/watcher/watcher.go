package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/compatibility"
	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
)

// Triggers label what started a run
const (
	TriggerStartup  = "startup"
	TriggerChange   = "change"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// DefaultDebounce is the quiet period after the last file event before a run starts
const DefaultDebounce = 500 * time.Millisecond

// ErrNoReference is returned when no reference baseline is configured
var ErrNoReference = errors.New("no reference baseline configured")

// Options configures a Watcher
type Options struct {
	// Dir is the descriptor directory that is watched and compared
	Dir string
	// Reference is a stored baseline name, or a descriptor directory or file on disk
	Reference string
	// Debounce defaults to DefaultDebounce
	Debounce time.Duration
	// Schedule is an optional standard cron expression for periodic runs
	Schedule string
	// Compare options applied to every run
	Compare report.Options
	// Push stores the watched baseline after every successful run
	Push bool
}

// ReportFunc receives the report of every successful run
type ReportFunc func(trigger string, r *report.Report)

// Watcher re-compares a descriptor directory against a reference baseline whenever the
// directory changes and on an optional schedule
type Watcher struct {
	opts     Options
	checker  *checker.Checker
	log      *logrus.Logger
	metrics  *observability.Metrics
	onReport ReportFunc

	runMu sync.Mutex
}

// Option configures optional Watcher dependencies
type Option func(*Watcher)

// WithMetrics counts runs by trigger and result
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithReportFunc registers a callback for finished runs
func WithReportFunc(fn ReportFunc) Option {
	return func(w *Watcher) { w.onReport = fn }
}

// New creates a Watcher. log may be nil.
func New(chk *checker.Checker, opts Options, log *logrus.Logger, options ...Option) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if opts.Reference == "" {
		return nil, ErrNoReference
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Schedule != "" {
		if _, err := cron.ParseStandard(opts.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
		}
	}
	if log == nil {
		log = logrus.New()
	}
	w := &Watcher{opts: opts, checker: chk, log: log}
	for _, o := range options {
		o(w)
	}
	return w, nil
}

// RunOnce loads the watched directory and the reference, compares them and returns the
// report. Runs never overlap.
func (w *Watcher) RunOnce(ctx context.Context, trigger string) (*report.Report, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	entry := w.log.WithFields(logrus.Fields{"trigger": trigger, "dir": w.opts.Dir, "reference": w.opts.Reference})
	start := time.Now()

	r, err := w.compare(ctx)
	if err != nil {
		w.count(trigger, "error")
		entry.WithError(err).Error("Compatibility check failed")
		return nil, err
	}

	result := "passed"
	if !r.Passed() {
		result = "failed"
	}
	w.count(trigger, result)

	fields := logrus.Fields{
		"report":     r.ID,
		"compatible": r.Result.Compatible,
		"advice":     r.Result.Advice.String(),
		"changes":    r.Result.Summary.TotalViolations,
		"duration":   time.Since(start).String(),
	}
	if r.Passed() {
		entry.WithFields(fields).Info("Baseline is compatible")
	} else {
		entry.WithFields(fields).Warn("Baseline has incompatible changes")
		for _, v := range r.Result.Violations {
			if v.Level == compatibility.ViolationLevelError {
				entry.WithFields(logrus.Fields{"rule": v.Rule, "location": v.Location}).Warn(v.Message)
			}
		}
		for _, p := range r.VersionProblems {
			entry.WithFields(logrus.Fields{"rule": p.Rule, "location": p.Location}).Warn(p.Message)
		}
	}

	if w.onReport != nil {
		w.onReport(trigger, r)
	}
	return r, nil
}

func (w *Watcher) compare(ctx context.Context) (*report.Report, error) {
	after, err := descriptor.LoadDir(w.opts.Dir)
	if err != nil {
		return nil, err
	}
	before, err := w.reference(ctx)
	if err != nil {
		return nil, err
	}

	r, err := w.checker.CompareDocuments(ctx, before, after, w.opts.Compare)
	if err != nil {
		return nil, err
	}
	if w.opts.Push {
		if store := w.checker.Store(); store != nil {
			if _, err := store.PutBaseline(ctx, after); err != nil {
				return nil, fmt.Errorf("failed to push %s: %w", after.Name, err)
			}
		}
	}
	return r, nil
}

// reference resolves the reference from disk first, then from the store
func (w *Watcher) reference(ctx context.Context) (*descriptor.BaselineDocument, error) {
	if info, err := os.Stat(w.opts.Reference); err == nil {
		if info.IsDir() {
			return descriptor.LoadDir(w.opts.Reference)
		}
		return descriptor.ParseFile(w.opts.Reference)
	}
	store := w.checker.Store()
	if store == nil {
		return nil, fmt.Errorf("reference %s: %w", w.opts.Reference, checker.ErrNoStore)
	}
	return store.GetBaseline(ctx, w.opts.Reference)
}

func (w *Watcher) count(trigger, result string) {
	if w.metrics != nil {
		w.metrics.WatcherRunsTotal.WithLabelValues(trigger, result).Inc()
	}
}

// Run performs a startup run, then watches the directory and the schedule until ctx is
// done. Failed runs are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}

	triggers := make(chan string, 1)
	fire := func(trigger string) {
		select {
		case triggers <- trigger:
		default:
		}
	}

	if w.opts.Schedule != "" {
		sched := cron.New(cron.WithLogger(cron.PrintfLogger(w.log)))
		if _, err := sched.AddFunc(w.opts.Schedule, func() { fire(TriggerSchedule) }); err != nil {
			return fmt.Errorf("failed to schedule checks: %w", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		w.log.WithField("schedule", w.opts.Schedule).Info("Scheduled checks enabled")
	}

	deb := newDebouncer(w.opts.Debounce, func() { fire(TriggerChange) })
	defer deb.Stop()

	w.log.WithField("dir", w.opts.Dir).Info("Watching descriptors")
	fire(TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watcher stopped")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if relevant(event) {
				w.log.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("Descriptor changed")
				deb.Touch()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")
		case trigger := <-triggers:
			_, _ = w.RunOnce(ctx, trigger)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return descriptor.IsDescriptorFile(event.Name)
}

// OptionsFromConfig converts the watcher and comparison sections of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:       cfg.Watcher.Dir,
		Reference: cfg.Watcher.Reference,
		Debounce:  cfg.Watcher.Debounce,
		Schedule:  cfg.Watcher.Schedule,
		Compare: report.Options{
			Visibility:   cfg.Comparison.Visibility,
			IncludeMinor: cfg.Comparison.IncludeMinor,
		},
	}
}
