package event

import (
	"context"
	"log/slog"
)

// LogSink writes every event on the bus to the security log until ctx is done.
func LogSink(ctx context.Context, bus Bus, logger *slog.Logger) error {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			attrs := []any{"event_id", e.ID, "type", string(e.Type), "at", e.Timestamp}
			if e.UserID != 0 {
				attrs = append(attrs, "user_id", e.UserID)
			}
			for k, v := range e.Fields {
				attrs = append(attrs, k, v)
			}
			logger.LogAttrs(ctx, levelFor(e.Type), "security event", slog.Group("event", attrs...))
		}
	}
}

func levelFor(t Type) slog.Level {
	switch t {
	case TypeLoginFailed, TypeAccountLocked:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
