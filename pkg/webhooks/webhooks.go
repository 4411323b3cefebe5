package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	// SignatureHeader carries "sha256=" followed by the hex HMAC-SHA256 of
	// the request body keyed with the shared secret
	SignatureHeader = "X-Chefhub-Signature"
	EventHeader     = "X-Chefhub-Event"
	EventIDHeader   = "X-Chefhub-Event-ID"

	signaturePrefix = "sha256="
)

// EventType represents the type of webhook event
type EventType string

const (
	EventPaymentRequested  EventType = "payment.requested"
	EventEnrollmentActive  EventType = "enrollment.active"
	EventEnrollmentFailed  EventType = "enrollment.failed"
	EventEnrollmentRevoked EventType = "enrollment.revoked"
)

// Event represents a webhook event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Endpoint is a receiver of events. An endpoint with no Events receives
// every event.
type Endpoint struct {
	Name   string      `yaml:"name"`
	URL    string      `yaml:"url"`
	Secret string      `yaml:"secret"`
	Events []EventType `yaml:"events"`
}

func (e Endpoint) wants(t EventType) bool {
	return len(e.Events) == 0 || slices.Contains(e.Events, t)
}

// Dispatcher delivers signed events to the configured endpoints
type Dispatcher struct {
	endpoints  []Endpoint
	client     *http.Client
	retry      *RetryPolicy
	logger     *logrus.Logger
	deliveries *prometheus.CounterVec
	now        func() time.Time
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithRetry overrides the retry policy
func WithRetry(cfg RetryConfig) Option {
	return func(d *Dispatcher) { d.retry = NewRetryPolicy(cfg) }
}

// WithRegisterer registers the delivery counter with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) { reg.MustRegister(d.deliveries) }
}

// NewDispatcher creates a dispatcher for endpoints
func NewDispatcher(endpoints []Endpoint, logger *logrus.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		retry:     NewRetryPolicy(DefaultRetryConfig()),
		logger:    logger,
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefhub_webhook_deliveries_total",
				Help: "Outbound webhook deliveries by endpoint, event type and result",
			},
			[]string{"endpoint", "event", "result"},
		),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliveries exposes the delivery counter
func (d *Dispatcher) Deliveries() *prometheus.CounterVec {
	return d.deliveries
}

// Dispatch sends an event to every interested endpoint, retrying each with
// backoff. It returns the first delivery error after trying all endpoints.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType EventType, data map[string]interface{}) error {
	event := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: d.now(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var firstErr error
	for _, endpoint := range d.endpoints {
		if !endpoint.wants(eventType) {
			continue
		}

		attempts, err := d.retry.Do(ctx, func(ctx context.Context) error {
			return d.send(ctx, endpoint, event, payload)
		})

		entry := d.logger.WithFields(logrus.Fields{
			"endpoint": endpoint.Name,
			"event":    eventType,
			"event_id": event.ID,
			"attempts": attempts,
		})
		if err != nil {
			d.deliveries.WithLabelValues(endpoint.Name, string(eventType), "failed").Inc()
			entry.WithError(err).Warn("webhook delivery failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("deliver %s to %s: %w", eventType, endpoint.Name, err)
			}
			continue
		}
		d.deliveries.WithLabelValues(endpoint.Name, string(eventType), "delivered").Inc()
		entry.Debug("webhook delivered")
	}
	return firstErr
}

func (d *Dispatcher) send(ctx context.Context, endpoint Endpoint, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event.Type))
	req.Header.Set(EventIDHeader, event.ID)
	if endpoint.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, endpoint.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
}

// Sign returns the signature header value for payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret.
// An empty secret never verifies.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
