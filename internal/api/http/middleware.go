package http

import (
	"context"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/security"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

// ClaimsFromContext returns the caller's token claims set by the auth middleware.
func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.UserClaims)
	return claims, ok
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func actorFrom(ctx context.Context) domain.Actor {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return domain.Actor{}
	}
	return domain.Actor{ID: claims.UserID, Staff: claims.HasRole(security.RoleStaff)}
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unmatched"
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"requestID", RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()),
				)
				writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", "system")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// loggingMiddleware logs one line per request and counts the status per route.
func loggingMiddleware(m metrics.MetricsCollector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := routeName(r)
			m.RecordHTTPStatus(route, rec.statusCode)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", rec.statusCode,
				"durationMs", float64(time.Since(start).Microseconds()) / 1000,
				"requestID", RequestIDFromContext(r.Context()),
			}
			switch {
			case rec.statusCode >= 500:
				logger.ErrorContext(r.Context(), "HTTP request", args...)
			case rec.statusCode >= 400:
				logger.WarnContext(r.Context(), "HTTP request", args...)
			default:
				logger.InfoContext(r.Context(), "HTTP request", args...)
			}
		})
	}
}

// authMiddleware enforces the security level configured for the matched route.
func authMiddleware(tokens security.TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			level := config.RequiredLevel(routeName(r))
			if level == config.SecurityPublic {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("Authorization")
			if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
				token = token[7:]
			}
			if token == "" {
				writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authorization token is not provided", "auth")
				return
			}
			claims, err := tokens.ValidateToken(token)
			if err != nil {
				writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token", "auth")
				return
			}
			if level == config.SecurityStaff && !claims.HasRole(security.RoleStaff) {
				writeErrorResponse(w, http.StatusForbidden, "FORBIDDEN", "staff role required", "auth")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	idleAfter time.Duration

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// NewRateLimiter disables limiting when RequestsPerMinute is not positive.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	return &RateLimiter{
		limit:     limit,
		burst:     cfg.Burst,
		idleAfter: 10 * time.Minute,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddress(r)
		if !rl.allow(client, time.Now()) {
			retryAfter := max(int(math.Ceil(1.0/float64(rl.limit))), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", "system")
			logger.Warn("Rate limit exceeded", "client", client, "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.idleAfter {
		for key, cl := range rl.clients {
			if now.Sub(cl.lastAccess) > rl.idleAfter {
				delete(rl.clients, key)
			}
		}
		rl.lastSweep = now
	}

	cl, ok := rl.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = cl
	}
	cl.lastAccess = now
	return cl.limiter.AllowN(now, 1)
}

func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
