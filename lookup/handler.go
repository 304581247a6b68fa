package lookup

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sbc-om/sbc-sub007/httpx"
)

const healthTimeout = 2 * time.Second

// Handler exposes a Service over HTTP.
type Handler struct {
	svc     *Service
	admin   []httpx.MiddlewareFunc
	checks  []HealthChecker
	metrics http.Handler
}

type HandlerOption func(*Handler)

// WithAdmin guards the cache management routes with mw. Without it those
// routes are not registered.
func WithAdmin(mw ...httpx.MiddlewareFunc) HandlerOption {
	return func(h *Handler) { h.admin = append(h.admin, mw...) }
}

func WithHealthChecks(checks ...HealthChecker) HandlerOption {
	return func(h *Handler) { h.checks = append(h.checks, checks...) }
}

// WithMetricsHandler serves handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) HandlerOption {
	return func(h *Handler) { h.metrics = handler }
}

func NewHandler(svc *Service, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the routes on e. It satisfies httpx.RouteRegistrar.
func (h *Handler) Register(e *httpx.Echo) {
	e.GET("/healthz", h.health)
	if h.metrics != nil {
		e.GET("/metrics", httpx.WrapHandler(h.metrics))
	}

	v1 := httpx.NewRouter(e, "/v1")
	v1.GET("/lookup/*", h.lookup)

	if len(h.admin) == 0 {
		return
	}
	v1.GET("/cache/stats", h.stats, h.admin...)
	v1.DELETE("/cache", h.purge, h.admin...)
	v1.DELETE("/cache/*", h.forget, h.admin...)
}

func (h *Handler) lookup(c httpx.Context) error {
	res, err := h.svc.Lookup(c.Request().Context(), c.Param("*"), c.QueryParams())
	if err != nil {
		return lookupError(err)
	}
	cacheStatus := "miss"
	if res.Source.Cached() {
		cacheStatus = "hit"
	}
	c.Response().Header().Set("X-Cache", cacheStatus)
	return c.JSONBlob(httpx.StatusOK, res.Data)
}

func (h *Handler) stats(c httpx.Context) error {
	st := h.svc.Stats()
	return c.JSON(httpx.StatusOK, map[string]any{
		"entries":     st.Entries,
		"max_entries": st.MaxEntries,
		"ttl":         st.TTL,
	})
}

func (h *Handler) purge(c httpx.Context) error {
	h.svc.Purge()
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) forget(c httpx.Context) error {
	if err := h.svc.Forget(c.Request().Context(), c.Param("*"), c.QueryParams()); err != nil {
		if errors.Is(err, ErrInvalidResource) {
			return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) health(c httpx.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	overall := "healthy"
	for _, hc := range h.checks {
		if hc == nil {
			continue
		}
		if err := hc.Check(ctx); err != nil {
			deps[hc.Name()] = "unhealthy"
			overall = "degraded"
		} else {
			deps[hc.Name()] = "healthy"
		}
	}

	code := httpx.StatusOK
	if overall != "healthy" {
		code = httpx.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{
		"status":       overall,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	})
}

func lookupError(err error) error {
	var se *httpx.StatusError
	switch {
	case errors.Is(err, ErrInvalidResource):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.HTTPError(httpx.StatusGatewayTimeout, "upstream timed out")
	case errors.Is(err, context.Canceled):
		return httpx.HTTPError(httpx.StatusGatewayTimeout, "request cancelled")
	case errors.As(err, &se) && se.Code == httpx.StatusNotFound:
		return httpx.HTTPError(httpx.StatusNotFound, "resource not found")
	case errors.Is(err, ErrUpstream):
		return httpx.HTTPError(httpx.StatusBadGateway, "upstream request failed")
	default:
		return err
	}
}
