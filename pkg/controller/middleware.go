package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	headerAPIKey   = "X-API-Key"
	headerTenantID = "X-Tenant-ID"
)

type contextKey string

const tenantContextKey contextKey = "tenant_id"

func tenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantContextKey).(string)
	return tenantID
}

// authenticate checks the API key and tenant headers. A missing or wrong
// key is 401; a missing tenant is 400. An unset key rejects everything
// rather than letting requests through.
func (x *Controller) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if x.args.APIKey == "" || r.Header.Get(headerAPIKey) != x.args.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}

		tenantID := r.Header.Get(headerTenantID)
		if tenantID == "" {
			writeError(w, http.StatusBadRequest, "missing "+headerTenantID+" header")
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// measure records per-route request counts and latency.
func (x *Controller) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		x.requests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		x.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
