package mediaprobe

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Capture after Close.
var ErrQueueClosed = errors.New("mediaprobe: frame queue closed")

type captureRequest struct {
	ctx   context.Context
	at    time.Duration
	reply chan captureResult
}

type captureResult struct {
	frame Frame
	err   error
}

// FrameQueue serialises frame captures against one decoder. A single worker
// takes one request at a time, seeks, waits for the seek to complete and only
// then captures, so two seeks never overlap.
type FrameQueue struct {
	dec      Decoder
	requests chan captureRequest
	quit     chan struct{}
	done     chan struct{}
}

// NewFrameQueue starts the worker for dec. Close stops it; it does not close dec.
func NewFrameQueue(dec Decoder) *FrameQueue {
	q := &FrameQueue{
		dec:      dec,
		requests: make(chan captureRequest),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *FrameQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case req := <-q.requests:
			frame, err := q.capture(req.ctx, req.at)
			req.reply <- captureResult{frame: frame, err: err}
		}
	}
}

func (q *FrameQueue) capture(ctx context.Context, at time.Duration) (Frame, error) {
	select {
	case err := <-q.dec.Seek(ctx, at):
		if err != nil {
			return Frame{}, err
		}
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
	frame, err := q.dec.Capture(ctx)
	if err != nil {
		return Frame{}, err
	}
	frame.At = at
	return frame, nil
}

// Capture queues a capture at position at and waits for its frame.
func (q *FrameQueue) Capture(ctx context.Context, at time.Duration) (Frame, error) {
	req := captureRequest{ctx: ctx, at: at, reply: make(chan captureResult, 1)}
	select {
	case q.requests <- req:
	case <-q.quit:
		return Frame{}, ErrQueueClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.frame, res.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// CaptureAll captures each target in order, stopping at the first failure.
func (q *FrameQueue) CaptureAll(ctx context.Context, targets []time.Duration) ([]Frame, error) {
	frames := make([]Frame, 0, len(targets))
	for _, at := range targets {
		f, err := q.Capture(ctx, at)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Close stops the worker and waits for it to exit.
func (q *FrameQueue) Close() {
	select {
	case <-q.quit:
	default:
		close(q.quit)
	}
	<-q.done
}
