// Package views holds the page controllers. Each controller moves through
// idle -> loading -> ready|error, re-entering loading on refetch. Every fetch
// is stamped with a generation so a superseded response never overwrites the
// state produced by a newer one. Mutations apply to local state only after
// the backend has answered.
package views

import (
	"context"
	"log/slog"
	"sync"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Phase is the lifecycle state of a controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the phase name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// NoticeKind classifies user-visible notices.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message surfaced to the user.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Session is what controllers need from the session provider.
type Session interface {
	Require() (*model.User, error)
}

// viewerID returns the signed-in user's id, or "" when signed out.
func viewerID(s Session) string {
	if s == nil {
		return ""
	}
	u, err := s.Require()
	if err != nil {
		return ""
	}
	return u.ID
}

// tracker carries the phase, generation and notices shared by all controllers.
// Controller fields are guarded by mu as well.
type tracker struct {
	mu       sync.Mutex
	phase    Phase
	gen      uint64
	notFound bool
	notices  []Notice
	logger   *slog.Logger
}

func newTracker(logger *slog.Logger) *tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &tracker{logger: logger}
}

// begin enters loading and returns the generation of the new fetch.
func (t *tracker) begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.phase = PhaseLoading
	t.notFound = false
	return t.gen
}

// commit runs apply and enters ready, unless gen was superseded.
func (t *tracker) commit(gen uint64, apply func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}
	if apply != nil {
		apply()
	}
	t.phase = PhaseReady
	return true
}

// missing records an explicit not-found outcome. It is a ready state, not an
// error. clear drops whatever an earlier load left behind.
func (t *tracker) missing(gen uint64, message string, clear func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	if clear != nil {
		clear()
	}
	t.phase = PhaseReady
	t.notFound = true
	t.notices = append(t.notices, Notice{Kind: NoticeInfo, Message: message})
}

// fail logs err, surfaces message and enters error, unless gen was superseded.
func (t *tracker) fail(ctx context.Context, gen uint64, err error, message string) error {
	t.logger.ErrorContext(ctx, message, slog.String("error", err.Error()))
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return err
	}
	t.phase = PhaseError
	t.notices = append(t.notices, Notice{Kind: NoticeError, Message: message})
	return err
}

// warn surfaces a failed mutation without changing the phase.
func (t *tracker) warn(ctx context.Context, err error, message string) error {
	t.logger.WarnContext(ctx, message, slog.String("error", err.Error()))
	t.notify(NoticeError, message)
	return err
}

func (t *tracker) notify(kind NoticeKind, message string) {
	t.mu.Lock()
	t.notices = append(t.notices, Notice{Kind: kind, Message: message})
	t.mu.Unlock()
}

// Phase returns the current phase.
func (t *tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// NotFound reports whether the last load found nothing.
func (t *tracker) NotFound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notFound
}

// Notices returns and clears the pending notices.
func (t *tracker) Notices() []Notice {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.notices
	t.notices = nil
	return out
}

// isNotFound reports whether err is the backend's not-found error.
func isNotFound(err error) bool { return errordefs.Is(err, errordefs.VH_NOT_FOUND) }

// busy is returned when a mutation on the same control is still in flight.
func busy() error { return errordefs.New(errordefs.VH_BUSY, "request already in progress", "") }

// needSignIn surfaces a sign-in prompt for action and returns VH_AUTHN.
func (t *tracker) needSignIn(action string) error {
	msg := "Please sign in to " + action
	t.notify(NoticeError, msg)
	return errordefs.New(errordefs.VH_AUTHN, msg, "")
}
