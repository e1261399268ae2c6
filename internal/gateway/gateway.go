// Package gateway is the typed request layer between VidHub controllers and
// the remote backend. Every function issues one query or one mutation,
// records a span and a metric, and normalises the error channel into
// errors.Error carrying the backend's message.
package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/RegistryAccord/vidhub-go/internal/config"
	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
	"github.com/RegistryAccord/vidhub-go/internal/telemetry"
)

// Gateway wraps the backend store and object storage.
type Gateway struct {
	store     storage.Store
	objects   media.ObjectStore
	events    event.Publisher
	validator *schema.Validator
	metrics   *metrics.Metrics
	buckets   config.Buckets
	logger    *slog.Logger
}

// Options configures a Gateway. Store, Objects and Validator are required.
type Options struct {
	Store     storage.Store
	Objects   media.ObjectStore
	Events    event.Publisher // Defaults to a no-op publisher
	Validator *schema.Validator
	Metrics   *metrics.Metrics // May be nil
	Buckets   config.Buckets
	Logger    *slog.Logger
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	if opts.Events == nil {
		opts.Events = event.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gateway{
		store:     opts.Store,
		objects:   opts.Objects,
		events:    opts.Events,
		validator: opts.Validator,
		metrics:   opts.Metrics,
		buckets:   opts.Buckets,
		logger:    opts.Logger,
	}
}

// Buckets returns the configured bucket names.
func (g *Gateway) Buckets() config.Buckets { return g.buckets }

// Ping checks backend reachability.
func (g *Gateway) Ping(ctx context.Context) (err error) {
	ctx, done := g.begin(ctx, "ping")
	defer done(&err)
	return g.store.Ping(ctx)
}

// begin opens a span for op. The returned func normalises *errp, records the
// outcome and ends the span; call it deferred with the named error result.
func (g *Gateway) begin(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway."+op)
	start := time.Now()
	return ctx, func(errp *error) {
		if *errp != nil {
			*errp = normalize(ctx, *errp)
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		g.metrics.ObserveGateway(op, start, *errp)
		span.End()
	}
}

// normalize maps backend errors onto coded errors, keeping the backend message.
func normalize(ctx context.Context, err error) error {
	corr := event.CorrelationID(ctx)
	if e, ok := errordefs.As(err); ok {
		if e.CorrelationID == "" && corr != "" {
			return e.WithCorrelation(corr)
		}
		return e
	}
	var code errordefs.ErrorCode
	switch {
	case stderrors.Is(err, storage.ErrNotFound), stderrors.Is(err, media.ErrNotFound):
		code = errordefs.VH_NOT_FOUND
	case stderrors.Is(err, storage.ErrConflict), stderrors.Is(err, media.ErrExists):
		code = errordefs.VH_CONFLICT
	case stderrors.Is(err, storage.ErrInsufficientFunds):
		code = errordefs.VH_INSUFFICIENT_FUNDS
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		code = errordefs.VH_UNAVAILABLE
	default:
		code = errordefs.VH_BACKEND
	}
	return errordefs.New(code, err.Error(), corr)
}

// emit logs a failed publish; events never fail the mutation that caused them.
func (g *Gateway) emit(ctx context.Context, subject string, err error) {
	if err != nil {
		g.logger.WarnContext(ctx, "event publish failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
