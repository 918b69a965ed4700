package simpleresource

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ResourceCreated does nothing and returns nil
func (n *NoopEventSink) ResourceCreated(ctx context.Context, resource *Resource) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ResourceCreated logs the created resource
func (l *LoggingEventSink) ResourceCreated(ctx context.Context, resource *Resource) error {
	l.logger.InfoContext(ctx, "event: resource created",
		"id", resource.ID,
		"title", resource.Title,
		"storage_reference", resource.StorageReference)
	return nil
}
