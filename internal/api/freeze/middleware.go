package freeze

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
	"github.com/FACorreiaa/onelink-market/internal/api"
)

// IsMutating reports whether the method can change server state.
func IsMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// CoreWriteGate answers 423 Locked for mutating requests while the core
// freeze is on. Reads always pass.
func CoreWriteGate(src Source, logger *slog.Logger) func(http.Handler) http.Handler {
	return gate(src, logger, "core", "Core writes are temporarily frozen for maintenance",
		func(f Flags) bool { return f.CoreFreeze })
}

// ShopsWriteGate answers 423 Locked for catalog writes while the shops
// freeze is on.
func ShopsWriteGate(src Source, logger *slog.Logger) func(http.Handler) http.Handler {
	return gate(src, logger, "shops", "Shop writes are temporarily frozen for maintenance",
		func(f Flags) bool { return f.ShopsFreeze })
}

func gate(src Source, logger *slog.Logger, name, message string, frozen func(Flags) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsMutating(r.Method) || !frozen(src.Flags()) {
				next.ServeHTTP(w, r)
				return
			}
			logger.WarnContext(r.Context(), "Write blocked by freeze",
				slog.String("freeze", name),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path))
			metrics.Get().FreezeBlockedTotal.Add(r.Context(), 1,
				metric.WithAttributes(attribute.String("freeze", name)))
			api.ErrorResponse(w, r, http.StatusLocked, message)
		})
	}
}
