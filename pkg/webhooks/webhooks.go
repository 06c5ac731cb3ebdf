package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of webhook event
type EventType string

const (
	EventReportPassed    EventType = "report.passed"
	EventReportFailed    EventType = "report.failed"
	EventBaselinePushed  EventType = "baseline.pushed"
	EventBaselineDeleted EventType = "baseline.deleted"
)

// Headers set on every delivery
const (
	HeaderEvent     = "X-Apidelta-Event"
	HeaderDelivery  = "X-Apidelta-Delivery"
	HeaderSignature = "X-Apidelta-Signature"
)

// ParseEventType accepts the event names above
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.TrimSpace(s)); t {
	case EventReportPassed, EventReportFailed, EventBaselinePushed, EventBaselineDeleted:
		return t, nil
	}
	return "", fmt.Errorf("unknown webhook event %q", s)
}

// Event is the JSON body of a delivery
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func newEvent(t EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Endpoint is a webhook receiver. An empty Events list subscribes to every event.
type Endpoint struct {
	URL    string      `json:"url"`
	Secret string      `json:"-"`
	Events []EventType `json:"events,omitempty"`
}

// Validate checks the endpoint URL
func (e Endpoint) Validate() error {
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL %q: %w", e.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid webhook URL %q: scheme must be http or https", e.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid webhook URL %q: missing host", e.URL)
	}
	return nil
}

// Accepts reports whether the endpoint subscribes to t
func (e Endpoint) Accepts(t EventType) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, et := range e.Events {
		if et == t {
			return true
		}
	}
	return false
}

// Sign returns the signature header value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value in constant time
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
