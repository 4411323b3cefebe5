package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/chefhub/pkg/contextkeys"
)

// LogConfig selects the process logger's level and encoding
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// NewLogger builds the process logger. Output defaults to stdout.
func NewLogger(cfg LogConfig, output io.Writer) (*logrus.Logger, error) {
	if output == nil {
		output = os.Stdout
	}

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(defaultString(cfg.Level, "info"))))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(level)

	switch strings.ToLower(defaultString(cfg.Format, "json")) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q (must be json or text)", cfg.Format)
	}
	return logger, nil
}

// WithLogger stores a request-scoped entry in the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextkeys.LoggerKey, entry)
}

// FromContext returns the request-scoped entry, or one derived from
// fallback carrying the request id, actor and trace ids found in ctx
func FromContext(ctx context.Context, fallback *logrus.Logger) *logrus.Entry {
	if entry, ok := ctx.Value(contextkeys.LoggerKey).(*logrus.Entry); ok {
		return entry
	}

	entry := logrus.NewEntry(fallback)
	if id := contextkeys.RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	if actor, ok := contextkeys.Actor(ctx); ok && !actor.IsAnonymous() {
		entry = entry.WithField("user_id", actor.UserID)
	}
	return WithTraceContext(ctx, entry)
}

// WithTraceContext adds the ids of the active span, if any
func WithTraceContext(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return entry
	}
	return entry.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
