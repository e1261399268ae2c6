// Package server exposes VidHub over HTTP: public pages, the app shell with
// optional session, and the gated routes that need a signed-in user.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RegistryAccord/vidhub-go/internal/gateway"
	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/session"
	"github.com/RegistryAccord/vidhub-go/internal/upload"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "vidhub_session"

	maxJSONBody      = 1 << 20
	multipartMemory  = 32 << 20
	multipartOverrun = 10 << 20
)

// Options configures the HTTP surface.
type Options struct {
	Gateway   *gateway.Gateway
	Auth      session.Authenticator
	Upload    upload.Deps
	Batches   *upload.Registry // Defaults to a registry over Upload
	Processor views.PaymentProcessor
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	BaseURL            string
	CORSAllowedOrigins []string
	RateLimitRPS       float64 // 0 disables rate limiting
	RateLimitBurst     int
}

// Server routes requests to the page controllers.
type Server struct {
	gw          *gateway.Gateway
	auth        session.Authenticator
	uploads     upload.Deps
	batches     *upload.Registry
	processor   views.PaymentProcessor
	metrics     *metrics.Metrics
	logger      *slog.Logger
	baseURL     string
	corsOrigins []string
	limiter     *rateLimiter

	router chi.Router

	// background batch runs
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Upload.Backend == nil {
		opts.Upload.Backend = opts.Gateway
	}
	if opts.Upload.Previews == nil {
		opts.Upload.Previews = upload.NewPreviews("")
	}
	if opts.Upload.Metrics == nil {
		opts.Upload.Metrics = opts.Metrics
	}
	if opts.Upload.Logger == nil {
		opts.Upload.Logger = opts.Logger
	}
	if opts.Batches == nil {
		opts.Batches = upload.NewRegistry(opts.Upload)
	}
	s := &Server{
		gw:          opts.Gateway,
		auth:        opts.Auth,
		uploads:     opts.Upload,
		batches:     opts.Batches,
		processor:   opts.Processor,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		baseURL:     opts.BaseURL,
		corsOrigins: opts.CORSAllowedOrigins,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.correlation)
	r.Use(s.cors)
	r.Use(s.observe)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, notFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, badRequest("method not allowed"))
	})

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/", s.handleLanding)
		r.Get("/auth", s.handleAuth)

		r.Route("/app", func(r chi.Router) {
			r.Use(s.rateLimit)

			r.Get("/", s.handleHome)
			r.Get("/video/{id}", s.handleVideo)
			r.Get("/video/{id}/comments", s.handleListComments)
			r.Get("/channel/{id}", s.handleChannel)
			r.Get("/playlist/{id}", s.handlePlaylist)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)

				r.Patch("/video/{id}", s.handleUpdateVideo)
				r.Post("/video/{id}/like", s.handleLike)
				r.Post("/video/{id}/subscribe", s.handleVideoSubscribe)
				r.Post("/video/{id}/comments", s.handleAddComment)
				r.Post("/channel/{id}/subscribe", s.handleChannelSubscribe)
				r.Post("/playlist/{id}/videos", s.handleAddToPlaylist)

				r.Get("/subscriptions", s.handleSubscriptions)

				r.Get("/upload", s.handleUploadForm)
				r.Post("/upload", s.handleUpload)
				r.Post("/upload/presign", s.handlePresign)
				r.Get("/upload/batches", s.handleListBatches)
				r.Post("/upload/batches", s.handleCreateBatch)
				r.Get("/upload/batches/{id}", s.handleGetBatch)
				r.Delete("/upload/batches/{id}", s.handleDeleteBatch)
				r.Post("/upload/batches/{id}/items/{index}/retry", s.handleRetryBatchItem)

				r.Get("/chat", s.handleChatList)
				r.Post("/chat", s.handleStartConversation)
				r.Get("/chat/{id}", s.handleChatThread)
				r.Post("/chat/{id}/messages", s.handleSendMessage)
				r.Get("/users", s.handleSearchUsers)

				r.Get("/wallet", s.handleWallet)
				r.Post("/wallet/deposit", s.handleDeposit)
				r.Post("/wallet/withdraw", s.handleWithdraw)

				r.Get("/settings", s.handleSettings)
				r.Put("/settings/profile", s.handleSaveProfile)
				r.Post("/settings/{kind:avatar|banner}", s.handleProfileImage)
				r.Put("/settings/preferences", s.handleSavePreferences)
				r.Post("/settings/signout", s.handleSignOut)

				r.Get("/notifications", s.handleNotifications)
				r.Post("/notifications/{id}/read", s.handleOpenNotification)
			})
		})
	})
	return r
}

// Shutdown cancels running batches and waits for them, or for ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bgCancel()
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.batches.Close()
	s.uploads.Previews.ReleaseAll()
	return nil
}

// background runs fn detached from the request, tracked for Shutdown.
func (s *Server) background(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.bgCtx)
	}()
}

// handleHealthz handles liveness health check requests
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports whether the backend answers.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.gw.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "readiness check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
