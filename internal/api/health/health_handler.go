package health

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type HealthHandler struct {
	flags  freeze.Source
	env    string
	logger *slog.Logger
	now    func() time.Time
}

func NewHealthHandler(flags freeze.Source, env string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{flags: flags, env: env, logger: logger, now: time.Now}
}

// Health godoc
// @Summary      Service health
// @Description  Reports the environment and the freeze flags as read at request time.
// @Tags         Health
// @Produce      json
// @Success      200 {object} types.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("HealthHandler").Start(r.Context(), "Health", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/health"),
	))
	defer span.End()

	st := h.flags.Status()
	span.SetAttributes(
		attribute.Bool("freeze.core", st.Core),
		attribute.Bool("freeze.shops", st.Shops),
	)
	w.Header().Set("Cache-Control", "no-store")
	api.WriteJSONResponse(w, r, http.StatusOK, types.HealthResponse{
		OK:     true,
		Time:   h.now().UTC(),
		Env:    h.env,
		Freeze: st,
	})
}
