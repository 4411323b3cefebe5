package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events to a structured logger. Denials are
// logged at warn level.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates a logger-backed audit sink
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{logger: logger}
}

// Log writes one line per event
func (l *LogrusLogger) Log(_ context.Context, event *AuditEvent) error {
	entry := l.logger.WithFields(logrus.Fields{
		"audit":         true,
		"audit_id":      event.ID,
		"event_type":    event.EventType,
		"actor_id":      event.ActorID,
		"actor_role":    event.ActorRole,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
		"operation":     event.Operation,
		"reason":        event.Reason,
		"request_id":    event.RequestID,
	})
	if event.Status == EventStatusDenied {
		entry.Warn("audit: access denied")
		return nil
	}
	entry.Info("audit: access allowed")
	return nil
}

// Close is a no-op
func (l *LogrusLogger) Close() error {
	return nil
}
