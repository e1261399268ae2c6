package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/session"
	"github.com/RegistryAccord/vidhub-go/internal/telemetry"
)

const readyTimeout = 2 * time.Second

type ctxKey int

const (
	ctxProvider ctxKey = iota
	ctxRequestState
	ctxAuthErr
)

// correlation stamps every request with an X-Correlation-Id.
func (s *Server) correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Correlation-Id", id)
		ctx := event.WithCorrelationID(r.Context(), id)
		ctx = context.WithValue(ctx, ctxRequestState, new(requestState))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestState is filled in by inner handlers and read back by observe.
type requestState struct {
	err    error
	userID string
}

func stateFrom(ctx context.Context) *requestState {
	if st, ok := ctx.Value(ctxRequestState).(*requestState); ok {
		return st
	}
	return &requestState{}
}

func setErr(ctx context.Context, err error) { stateFrom(ctx).err = err }

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// cors answers preflights and sets the allow-origin header for listed
// origins. An empty list denies all cross-origin callers.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && s.originAllowed(origin)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe traces, times, counts and logs each request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := telemetry.Tracer().Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		err := stateFrom(r.Context()).err
		if err != nil {
			span.RecordError(err)
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if s.metrics != nil {
			labels := []string{r.Method, route, strconv.Itoa(status)}
			s.metrics.HTTPRequestTotal.WithLabelValues(labels...).Inc()
			s.metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		}
		s.logRequest(r, status, time.Since(start), err)
	})
}

// logRequest logs request details
func (s *Server) logRequest(r *http.Request, status int, duration time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if corr := event.CorrelationID(r.Context()); corr != "" {
		attrs = append(attrs, slog.String("correlation_id", corr))
	}
	if uid := stateFrom(r.Context()).userID; uid != "" {
		attrs = append(attrs, slog.String("user_id", uid))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "request completed with error", attrs...)
		return
	}
	s.logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
}

// tokenFrom reads the bearer token, falling back to the session cookie.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// withSession attaches a request-scoped session provider. An invalid token
// leaves the request signed out; gated routes reject it later.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := session.NewProvider(s.auth, s.gw, s.logger)
		defer p.Close()
		ctx := context.WithValue(r.Context(), ctxProvider, p)
		if token := tokenFrom(r); token != "" {
			if err := p.Init(r.Context(), token); err != nil {
				s.logger.DebugContext(r.Context(), "session rejected", slog.String("error", err.Error()))
				ctx = context.WithValue(ctx, ctxAuthErr, err)
			} else if u := p.Current().User; u != nil {
				stateFrom(ctx).userID = u.ID
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func providerFrom(ctx context.Context) *session.Provider {
	p, _ := ctx.Value(ctxProvider).(*session.Provider)
	return p
}

// requireSession rejects signed-out requests: browsers are redirected to the
// sign-in page, API clients get VH_AUTHN.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := providerFrom(r.Context()).Require(); err != nil {
			if wantsHTML(r) {
				http.Redirect(w, r, "/auth?redirect="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			if prior, _ := r.Context().Value(ctxAuthErr).(error); prior != nil && session.IsAuthError(prior) {
				if def, ok := errordefs.As(prior); ok {
					err = def
				}
			}
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter hands out one token bucket per client key.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = int(rps) + 1
	}
	return &rateLimiter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (l *rateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// rateLimit keys on the signed-in user, else the client address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := clientIP(r)
		if p := providerFrom(r.Context()); p != nil {
			if st := p.Current(); st.User != nil {
				key = "user:" + st.User.ID
			}
		}
		if !s.limiter.get(key).Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, errordefs.New(errordefs.VH_RATE_LIMIT, "too many requests", ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
