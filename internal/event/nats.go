// Package event publishes VidHub domain events to NATS JetStream.
// When NATS is not configured a no-op publisher is used instead.
package event

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/RegistryAccord/vidhub-go/internal/metrics"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Event subjects.
const (
	SubjectVideoUploaded     = "vidhub.videos.uploaded"
	SubjectVideoPublished    = "vidhub.videos.published"
	SubjectVideoLiked        = "vidhub.engagement.like"
	SubjectSubscription      = "vidhub.engagement.subscription"
	SubjectCommentCreated    = "vidhub.engagement.comment"
	SubjectMessageSent       = "vidhub.chat.message"
	SubjectWalletTransaction = "vidhub.wallet.transaction"
	envelopeVersion          = "1.0.0"
	dedupWindow              = 2 * time.Minute
)

// Publisher publishes domain events.
type Publisher interface {
	PublishVideo(ctx context.Context, subject string, video model.Video) error
	PublishToggle(ctx context.Context, subject string, t Toggle) error
	PublishComment(ctx context.Context, comment model.Comment) error
	PublishMessage(ctx context.Context, msg model.Message) error
	PublishTransaction(ctx context.Context, wallet model.Wallet, txn model.Transaction) error
	Close() error
}

// Toggle is the payload of like and subscription events.
type Toggle struct {
	SubjectID string        `json:"subjectId"` // Video or channel id
	UserID    string        `json:"userId"`
	State     model.Toggled `json:"state"`
}

// EventEnvelope wraps every published payload.
type EventEnvelope struct {
	ID            string      `json:"id"`   // ULID, also used as the JetStream message id
	Type          string      `json:"type"` // Same as the subject
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Payload       interface{} `json:"payload"`
}

type correlationKey struct{}

// WithCorrelationID returns a context carrying the request correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEnvelope builds an envelope for subject with a fresh ULID.
func NewEnvelope(ctx context.Context, subject string, payload interface{}) EventEnvelope {
	now := time.Now().UTC()
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	return EventEnvelope{
		ID:            id.String(),
		Type:          subject,
		Version:       envelopeVersion,
		OccurredAt:    now,
		CorrelationID: CorrelationID(ctx),
		Payload:       payload,
	}
}

// noop is used when NATS is not configured.
type noop struct{}

// NewNoop returns a Publisher that discards every event.
func NewNoop() Publisher { return noop{} }

func (noop) PublishVideo(context.Context, string, model.Video) error                   { return nil }
func (noop) PublishToggle(context.Context, string, Toggle) error                       { return nil }
func (noop) PublishComment(context.Context, model.Comment) error                       { return nil }
func (noop) PublishMessage(context.Context, model.Message) error                       { return nil }
func (noop) PublishTransaction(context.Context, model.Wallet, model.Transaction) error { return nil }
func (noop) Close() error                                                              { return nil }

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	dedup map[string]time.Time // subject/id -> last publish time
}

// NewPublisher connects to url and prepares the streams. An empty url or any
// connection failure yields the no-op publisher.
func NewPublisher(url string, logger *slog.Logger, m *metrics.Metrics) Publisher {
	if url == "" {
		return noop{}
	}
	nc, err := nats.Connect(url, nats.Name("vidhubd"))
	if err != nil {
		logger.Warn("NATS connect failed, using noop publisher", slog.String("error", err.Error()))
		return noop{}
	}
	js, err := nc.JetStream()
	if err != nil {
		logger.Warn("NATS JetStream context creation failed, using noop publisher", slog.String("error", err.Error()))
		nc.Close()
		return noop{}
	}
	if err := initStreams(js); err != nil {
		logger.Warn("NATS stream initialization failed, using noop publisher", slog.String("error", err.Error()))
		nc.Close()
		return noop{}
	}
	return &natsPub{nc: nc, js: js, metrics: m, logger: logger, dedup: make(map[string]time.Time)}
}

// streams maps each stream onto its subject wildcard.
var streams = map[string]string{
	"VIDHUB_VIDEOS":     "vidhub.videos.>",
	"VIDHUB_ENGAGEMENT": "vidhub.engagement.>",
	"VIDHUB_CHAT":       "vidhub.chat.>",
	"VIDHUB_WALLET":     "vidhub.wallet.>",
}

// initStreams creates the streams if they do not exist yet.
func initStreams(js nats.JetStreamContext) error {
	for name, subject := range streams {
		if _, err := js.StreamInfo(name); err == nil {
			continue
		}
		_, err := js.AddStream(&nats.StreamConfig{
			Name:       name,
			Subjects:   []string{subject},
			Retention:  nats.LimitsPolicy,
			MaxAge:     7 * 24 * time.Hour,
			Discard:    nats.DiscardOld,
			Storage:    nats.FileStorage,
			Duplicates: dedupWindow,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s stream: %w", name, err)
		}
	}
	return nil
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

// seen reports whether key was published within the dedup window and records it otherwise.
func (p *natsPub) seen(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if last, ok := p.dedup[key]; ok && now.Sub(last) < dedupWindow {
		return true
	}
	cutoff := now.Add(-2 * dedupWindow)
	for k, t := range p.dedup {
		if t.Before(cutoff) {
			delete(p.dedup, k)
		}
	}
	p.dedup[key] = now
	return false
}

func (p *natsPub) publish(ctx context.Context, subject, dedupKey string, payload interface{}) (err error) {
	if dedupKey != "" && p.seen(subject+"/"+dedupKey) {
		return nil
	}
	start := time.Now()
	defer func() { p.metrics.ObserveEvent(subject, start, err) }()

	env := NewEnvelope(ctx, subject, payload)
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, b, nats.MsgId(env.ID), nats.Context(ctx))
	return err
}

func (p *natsPub) PublishVideo(ctx context.Context, subject string, video model.Video) error {
	return p.publish(ctx, subject, video.ID, video)
}

func (p *natsPub) PublishToggle(ctx context.Context, subject string, t Toggle) error {
	return p.publish(ctx, subject, "", t)
}

func (p *natsPub) PublishComment(ctx context.Context, comment model.Comment) error {
	return p.publish(ctx, SubjectCommentCreated, comment.ID, comment)
}

func (p *natsPub) PublishMessage(ctx context.Context, msg model.Message) error {
	return p.publish(ctx, SubjectMessageSent, msg.ID, msg)
}

func (p *natsPub) PublishTransaction(ctx context.Context, wallet model.Wallet, txn model.Transaction) error {
	return p.publish(ctx, SubjectWalletTransaction, txn.ID, struct {
		Wallet      model.Wallet      `json:"wallet"`
		Transaction model.Transaction `json:"transaction"`
	}{wallet, txn})
}
