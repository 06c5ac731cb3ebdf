package webhooks

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DeliveryStatus represents the outcome of a delivery
type DeliveryStatus string

const (
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Delivery records one event sent to one endpoint, including its retries
type Delivery struct {
	ID         string         `json:"id"`
	EventID    string         `json:"event_id"`
	EventType  EventType      `json:"event_type"`
	URL        string         `json:"url"`
	Status     DeliveryStatus `json:"status"`
	StatusCode int            `json:"status_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts"`
	CreatedAt  time.Time      `json:"created_at"`
	Duration   time.Duration  `json:"duration"`
}

// DeliveryStats summarizes the retained deliveries
type DeliveryStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// deliveryLog keeps the most recent deliveries. The LRU evicts the oldest entry once full.
type deliveryLog struct {
	entries *lru.Cache[string, Delivery]
}

func newDeliveryLog(size int) (*deliveryLog, error) {
	if size <= 0 {
		size = 1000
	}
	entries, err := lru.New[string, Delivery](size)
	if err != nil {
		return nil, err
	}
	return &deliveryLog{entries: entries}, nil
}

func (l *deliveryLog) add(d Delivery) {
	l.entries.Add(d.ID, d)
}

// recent returns up to limit deliveries, newest first
func (l *deliveryLog) recent(limit int) []Delivery {
	values := l.entries.Values()
	out := make([]Delivery, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, values[i])
	}
	return out
}

func (l *deliveryLog) stats() DeliveryStats {
	var s DeliveryStats
	for _, d := range l.entries.Values() {
		s.Total++
		if d.Status == DeliveryStatusSuccess {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}
