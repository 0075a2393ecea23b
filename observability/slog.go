package observability

import (
	"context"
	"log/slog"
)

// SlogObserver emits procedure-kernel events to a slog.Logger: the event
// type becomes the log message, Level maps to the matching slog.Level via
// Level.SlogLevel so a handler's level filter still applies, and Source plus
// every Data key are flattened into top-level attributes alongside the
// event's own Timestamp.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that emits to logger. Pass
// slog.Default() to use the process-wide default.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

// OnEvent logs event at the slog.Level matching its Level.
func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+2)
	attrs = append(attrs, slog.String("source", event.Source))
	attrs = append(attrs, slog.Time("timestamp", event.Timestamp))
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}

	o.logger.LogAttrs(ctx, event.Level.SlogLevel(), string(event.Type), attrs...)
}
