package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/apidelta/pkg/async"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

// Config configures a Dispatcher
type Config struct {
	Endpoints []Endpoint
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration
	Retry   RetryConfig
	// Workers deliver events concurrently. Queue bounds the events waiting for a worker.
	Workers int
	Queue   int
	// LogSize is the number of deliveries kept for inspection
	LogSize int
}

// Dispatcher delivers events to the configured endpoints in the background
type Dispatcher struct {
	endpoints []Endpoint
	client    *http.Client
	retry     *RetryPolicy
	pool      *async.Pool
	log       *deliveryLog
	logger    *observability.Logger
	metrics   *observability.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewDispatcher validates cfg and starts the delivery workers. Close stops them.
func NewDispatcher(cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Dispatcher, error) {
	for _, ep := range cfg.Endpoints {
		if err := ep.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 100
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	log, err := newDeliveryLog(cfg.LogSize)
	if err != nil {
		return nil, err
	}

	retry := NewRetryPolicy(cfg.Retry)
	d := &Dispatcher{
		endpoints: cfg.Endpoints,
		client:    &http.Client{Timeout: cfg.Timeout},
		retry:     retry,
		log:       log,
		logger:    logger.WithField("component", "webhooks"),
		metrics:   metrics,
		sleep:     sleepContext,
	}
	// A delivery may wait through every backoff delay before it gives up.
	budget := time.Duration(retry.MaxAttempts()) * (cfg.Timeout + retry.config.MaxDelay)
	d.pool = async.NewPool(context.Background(), "webhooks", cfg.Workers, cfg.Queue, budget, logger)
	return d, nil
}

// Endpoints returns the configured endpoints
func (d *Dispatcher) Endpoints() []Endpoint {
	return d.endpoints
}

// Dispatch queues event t for every subscribed endpoint. It returns once the deliveries
// are queued, not delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, t EventType, data interface{}) error {
	event := newEvent(t, data)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", t, err)
	}
	for _, ep := range d.endpoints {
		if !ep.Accepts(t) {
			continue
		}
		ep := ep
		if err := d.pool.Submit(ctx, func(ctx context.Context) error {
			return d.deliver(ctx, ep, event, body)
		}); err != nil {
			return fmt.Errorf("failed to queue %s event for %s: %w", t, ep.URL, err)
		}
	}
	return nil
}

// NotifyReport announces a finished comparison as report.passed or report.failed
func (d *Dispatcher) NotifyReport(ctx context.Context, r *report.Report) {
	t := EventReportPassed
	if !r.Passed() {
		t = EventReportFailed
	}
	d.notify(ctx, t, r.Summarize())
}

// NotifyBaselinePushed announces a stored baseline
func (d *Dispatcher) NotifyBaselinePushed(ctx context.Context, info storage.BaselineInfo) {
	d.notify(ctx, EventBaselinePushed, info)
}

// NotifyBaselineDeleted announces a deleted baseline
func (d *Dispatcher) NotifyBaselineDeleted(ctx context.Context, name string) {
	d.notify(ctx, EventBaselineDeleted, map[string]string{"name": name})
}

func (d *Dispatcher) notify(ctx context.Context, t EventType, data interface{}) {
	if err := d.Dispatch(ctx, t, data); err != nil {
		d.logger.WithError(err).WithField("event", string(t)).Warn("Webhook event dropped")
	}
}

// deliver posts body to ep, retrying per the retry policy
func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, event *Event, body []byte) error {
	rec := Delivery{
		ID:        uuid.NewString(),
		EventID:   event.ID,
		EventType: event.Type,
		URL:       ep.URL,
		CreatedAt: time.Now().UTC(),
	}
	start := time.Now()

	var err error
	for {
		rec.Attempts++
		rec.StatusCode, err = d.post(ctx, ep, event, rec.ID, body)
		if err == nil && (rec.StatusCode < 200 || rec.StatusCode >= 300) {
			err = fmt.Errorf("endpoint returned %d", rec.StatusCode)
		}
		if err == nil || !d.retry.ShouldRetry(rec.Attempts, rec.StatusCode, err) {
			break
		}
		if serr := d.sleep(ctx, d.retry.Delay(rec.Attempts)); serr != nil {
			err = serr
			break
		}
	}

	rec.Duration = time.Since(start)
	rec.Status = DeliveryStatusSuccess
	result := "success"
	if err != nil {
		rec.Status = DeliveryStatusFailed
		rec.Error = err.Error()
		result = "failed"
	}
	d.log.add(rec)
	if d.metrics != nil {
		d.metrics.WebhookDeliveriesTotal.WithLabelValues(string(event.Type), result).Inc()
	}

	entry := d.logger.WithFields(map[string]interface{}{
		"event":    string(event.Type),
		"url":      ep.URL,
		"attempts": rec.Attempts,
		"status":   rec.StatusCode,
	})
	if err != nil {
		entry.WithError(err).Warn("Webhook delivery failed")
		return err
	}
	entry.Debug("Webhook delivered")
	return nil
}

func (d *Dispatcher) post(ctx context.Context, ep Endpoint, event *Event, deliveryID string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "apidelta-webhooks")
	req.Header.Set(HeaderEvent, string(event.Type))
	req.Header.Set(HeaderDelivery, deliveryID)
	if ep.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(ep.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// Deliveries returns up to limit recent deliveries, newest first
func (d *Dispatcher) Deliveries(limit int) []Delivery {
	return d.log.recent(limit)
}

// Stats summarizes the retained deliveries
func (d *Dispatcher) Stats() DeliveryStats {
	return d.log.stats()
}

// Close waits for queued deliveries until ctx is done
func (d *Dispatcher) Close(ctx context.Context) error {
	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return d.pool.Shutdown(timeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
