package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"feepay-backend/internal/config"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/metrics"
	"feepay-backend/internal/security"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// routeName is the security and metrics key of the matched route, e.g. "GET /api/v1/invoices/{id}".
func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.Method + " unmatched"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.Method + " unmatched"
	}
	return r.Method + " " + tpl
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument assigns a request id, logs the request and records HTTP metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		name := routeName(r)
		route := strings.TrimPrefix(name, r.Method+" ")
		metrics.ObserveHTTP(r.Method, route, rec.status, elapsed)
		logger.WithRequest(r.Method, r.URL.Path, id).Info("HTTP request",
			"route", route, "status", rec.status, "duration_ms", elapsed.Milliseconds())
	})
}

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler authenticates the caller of every non-public route and checks the route's role list.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sec := config.GetRouteSecurity(routeName(r))

		// Public endpoint - skip auth
		if sec.Level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided"})
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token: " + err.Error()})
			return
		}
		if !sec.Allows(claims.Role) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "role " + string(claims.Role) + " may not call this endpoint"})
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims.Identity())))
	})
}

// extractToken reads a bearer token from the Authorization header, falling back to the
// session cookie set by the web client.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return strings.TrimSpace(h)
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
