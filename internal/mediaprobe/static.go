package mediaprobe

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Static is a Decoder over fixed metadata that renders placeholder frames.
// Seeks complete after SeekDelay. It records every seek and flags any that
// overlapped, which makes it suitable for tests.
type Static struct {
	Meta      Metadata
	SeekDelay time.Duration
	Err       error // returned by Metadata when set

	mu         sync.Mutex
	position   time.Duration
	seeking    bool
	overlapped bool
	seeks      []time.Duration
	closed     bool
}

// NewStatic returns a Static decoder for m.
func NewStatic(m Metadata) *Static { return &Static{Meta: m} }

// Opener returns an Opener that hands out s for every path.
func (s *Static) Opener() Opener {
	return func(string) (Decoder, error) { return s, nil }
}

func (s *Static) Metadata(context.Context) (Metadata, error) {
	if s.Err != nil {
		return Metadata{}, s.Err
	}
	return s.Meta, nil
}

func (s *Static) Seek(ctx context.Context, at time.Duration) <-chan error {
	done := make(chan error, 1)
	s.mu.Lock()
	if s.seeking {
		s.overlapped = true
		s.mu.Unlock()
		done <- ErrSeekInProgress
		return done
	}
	s.seeking = true
	s.seeks = append(s.seeks, at)
	s.mu.Unlock()

	go func() {
		if s.SeekDelay > 0 {
			select {
			case <-time.After(s.SeekDelay):
			case <-ctx.Done():
			}
		}
		s.mu.Lock()
		s.seeking = false
		s.position = at
		s.mu.Unlock()
		done <- ctx.Err()
	}()
	return done
}

func (s *Static) Capture(context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeking {
		s.overlapped = true
		return Frame{}, ErrSeekInProgress
	}
	return Frame{At: s.position, JPEG: []byte(fmt.Sprintf("frame@%s", s.position))}, nil
}

func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Seeks returns the positions sought so far.
func (s *Static) Seeks() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.seeks...)
}

// Overlapped reports whether a seek or capture ever ran while a seek was pending.
func (s *Static) Overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapped
}

// Closed reports whether Close was called.
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
