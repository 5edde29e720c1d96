package observability

import (
	"context"
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingMetric wraps one entry of the Server-Timing header.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

func (m *ServerTimingMetric) Stop() {
	if m != nil && m.metric != nil {
		m.metric.Stop()
	}
}

// StartServerTiming starts a named timing. Without server timing in ctx it
// returns a no-op metric.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &ServerTimingMetric{}
	}
	return &ServerTimingMetric{metric: timing.NewMetric(name).Start()}
}

// ServerTimingMiddleware adds the Server-Timing header when enabled.
func ServerTimingMiddleware(cfg *Config) func(http.Handler) http.Handler {
	if !cfg.ServerTimingEnabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return servertiming.Middleware(next, nil)
	}
}
