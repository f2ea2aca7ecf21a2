package gateway

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// untraced paths are served without a span: scrapes are noise and the tick
// stream needs the raw ResponseWriter to hijack the connection.
var untraced = map[string]bool{
	"/metrics":          true,
	"/api/ticks/stream": true,
}

// instrument wraps h with an otelhttp server span per request, using the
// global tracer provider installed when the runtime starts.
func instrument(h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, "gateway.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !untraced[r.URL.Path]
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
