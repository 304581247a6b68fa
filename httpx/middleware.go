package httpx

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sbc-om/sbc-sub007/auth"
)

// AuthMiddleware runs mw in front of the echo handler chain. The verified
// principal is available through auth.PrincipalFromContext.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var nextErr error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				nextErr = next(c)
			})
			mw.Handler(downstream).ServeHTTP(c.Response(), c.Request())
			return nextErr
		}
	}
}

// RequireRole rejects requests whose principal lacks role. It must run
// after AuthMiddleware.
func RequireRole(role string) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			p, ok := auth.PrincipalFromContext(c.Request().Context())
			if !ok {
				return HTTPError(StatusUnauthorized, "unauthenticated")
			}
			if !p.HasRole(role) {
				return HTTPError(StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

// RequestIDMiddleware stamps every response with an X-Request-ID, reusing
// the caller's value when present.
func RequestIDMiddleware() MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo render the error so the logged status is final.
				c.Error(err)
			}

			entry := log.WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"request_id": c.Response().Header().Get(HeaderXRequestID),
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			switch status := c.Response().Status; {
			case status >= http.StatusInternalServerError:
				entry.Error("request failed")
			case status >= http.StatusBadRequest:
				entry.Info("request rejected")
			default:
				entry.Debug("request served")
			}
			return nil
		}
	}
}

// RequestObserver receives one observation per finished request.
type RequestObserver interface {
	ObserveRequest(method, endpoint string, status int, elapsed time.Duration)
}

// MetricsMiddleware reports requests to obs labelled by route template.
func MetricsMiddleware(obs RequestObserver) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			obs.ObserveRequest(c.Request().Method, endpoint, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
