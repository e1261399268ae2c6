// Package main implements the entry point for the VidHub service.
// It wires storage, object storage, events, authentication and the scheduled
// publisher, then serves HTTP until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/gateway"
	"github.com/RegistryAccord/vidhub-go/internal/identity"
	"github.com/RegistryAccord/vidhub-go/internal/jwks"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/mediaprobe"
	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/scheduler"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/server"
	"github.com/RegistryAccord/vidhub-go/internal/session"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
	"github.com/RegistryAccord/vidhub-go/internal/telemetry"
	"github.com/RegistryAccord/vidhub-go/internal/upload"
	"github.com/RegistryAccord/vidhub-go/internal/views"
)

var version = "dev"

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("vidhubd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.InitTracer("vidhubd", version, os.Stderr); err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx, logger)
	}()

	m := metrics.NewMetrics()

	// Storage backend (PostgreSQL or in-memory)
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		pg, closeStore, err := storage.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("init postgres storage: %w", err)
		}
		defer closeStore()
		store = pg
	} else {
		logger.Warn("VIDHUB_DB_DSN not set, using in-memory storage")
		store = storage.NewMemory()
	}

	// Object storage (S3-compatible or in-memory)
	var objects media.ObjectStore
	if cfg.S3Endpoint != "" {
		s3, err := media.NewS3Store(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3PublicBaseURL)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		objects = s3
	} else {
		logger.Warn("VIDHUB_S3_ENDPOINT not set, using in-memory object storage")
		objects = media.NewMemory(cfg.BaseURL + "/objects")
	}

	pub := event.NewPublisher(cfg.NATSURL, logger, m)
	defer pub.Close()

	validator, err := schema.NewValidator(m)
	if err != nil {
		return fmt.Errorf("init schema validator: %w", err)
	}

	gw := gateway.New(gateway.Options{
		Store:     store,
		Objects:   objects,
		Events:    pub,
		Validator: validator,
		Metrics:   m,
		Buckets:   cfg.Buckets,
		Logger:    logger,
	})

	auth, err := authenticator(cfg)
	if err != nil {
		return err
	}

	var opener mediaprobe.Opener
	probe := mediaprobe.FFmpeg{ProbePath: cfg.FFprobePath, FFmpegPath: cfg.FFmpegPath}
	if probe.Available() {
		opener = probe.Open
	} else {
		logger.Warn("ffprobe/ffmpeg not found, video metadata and thumbnails disabled")
	}

	sched, err := scheduler.New(cfg.PublishSchedule, gw, m, logger)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()

	srv := server.New(server.Options{
		Gateway: gw,
		Auth:    auth,
		Upload: upload.Deps{
			Backend:  gw,
			Opener:   opener,
			Previews: upload.NewPreviews(cfg.TempDir),
			Limits: upload.Limits{
				MaxVideoSize: cfg.MaxVideoSize,
				MaxImageSize: cfg.MaxImageSize,
				VideoTypes:   cfg.AllowedVideoTypes,
				ImageTypes:   cfg.AllowedImageTypes,
			},
			Metrics:     m,
			Logger:      logger,
			Concurrency: cfg.BatchConcurrency,
		},
		Processor:          views.SimulatedProcessor{Delay: cfg.PaymentDelay},
		Metrics:            m,
		Logger:             logger,
		BaseURL:            cfg.BaseURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	addr := ":" + cfg.Port
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads stream large bodies, so reads and writes are not capped.
		IdleTimeout: 120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "version", version)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown failed", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("upload shutdown failed", "error", err)
	}
	return nil
}

// authenticator picks the session authenticator: the remote auth service when
// configured, otherwise local JWT validation.
func authenticator(cfg config.Config) (session.Authenticator, error) {
	switch {
	case cfg.AuthURL != "":
		return identity.New(cfg.AuthURL, cfg.AuthAPIKey), nil
	case cfg.JWTSecret != "":
		return session.TokenAuth{Validator: jwks.NewHMACClient([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)}, nil
	case cfg.JWKSURL != "":
		return session.TokenAuth{Validator: jwks.NewClient(cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience)}, nil
	default:
		return nil, fmt.Errorf("one of VIDHUB_AUTH_URL, VIDHUB_JWT_SECRET or VIDHUB_JWKS_URL is required")
	}
}
