package event

import (
	"context"
	"sync"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Recorder is an in-memory Publisher that keeps every envelope, for tests and
// local development.
type Recorder struct {
	mu     sync.Mutex
	events []EventEnvelope
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) add(ctx context.Context, subject string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEnvelope(ctx, subject, payload))
	return nil
}

// Events returns a copy of the recorded envelopes.
func (r *Recorder) Events() []EventEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventEnvelope(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) PublishVideo(ctx context.Context, subject string, video model.Video) error {
	return r.add(ctx, subject, video)
}

func (r *Recorder) PublishToggle(ctx context.Context, subject string, t Toggle) error {
	return r.add(ctx, subject, t)
}

func (r *Recorder) PublishComment(ctx context.Context, comment model.Comment) error {
	return r.add(ctx, SubjectCommentCreated, comment)
}

func (r *Recorder) PublishMessage(ctx context.Context, msg model.Message) error {
	return r.add(ctx, SubjectMessageSent, msg)
}

func (r *Recorder) PublishTransaction(ctx context.Context, wallet model.Wallet, txn model.Transaction) error {
	return r.add(ctx, SubjectWalletTransaction, txn)
}

func (r *Recorder) Close() error { return nil }
