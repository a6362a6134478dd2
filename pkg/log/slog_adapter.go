package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see the trace in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Conn != nil:
		attrs = append(attrs, slog.String("new_state", event.Conn.NewState))
		if event.Conn.OldState != "" {
			attrs = append(attrs, slog.String("old_state", event.Conn.OldState))
		}
		if event.Conn.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Conn.Reason))
		}
	case event.Auth != nil:
		attrs = append(attrs, slog.Bool("success", event.Auth.Success))
		if event.Auth.HAVersion != "" {
			attrs = append(attrs, slog.String("ha_version", event.Auth.HAVersion))
		}
		if event.Auth.Message != "" {
			attrs = append(attrs, slog.String("message", event.Auth.Message))
		}
	case event.Subscription != nil:
		attrs = append(attrs,
			slog.String("entity", event.Subscription.EntityID),
			slog.Int64("subscription_id", event.Subscription.SubscriptionID),
		)
		if event.Subscription.Acked {
			attrs = append(attrs, slog.Bool("success", event.Subscription.Success))
		}
		if event.Subscription.Error != "" {
			attrs = append(attrs, slog.String("error", event.Subscription.Error))
		}
	case event.Change != nil:
		attrs = append(attrs,
			slog.String("entity", event.Change.EntityID),
			slog.Int64("subscription_id", event.Change.SubscriptionID),
			slog.String("old_state", event.Change.OldState),
			slog.String("new_state", event.Change.NewState),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.EntityID != "" {
			attrs = append(attrs, slog.String("entity", event.Error.EntityID))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
