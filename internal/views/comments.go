package views

import (
	"context"
	"log/slog"
	"strings"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

func errNoVideo() error { return errordefs.New(errordefs.VH_NOT_FOUND, "no video loaded", "") }

// CommentThreadView is a snapshot of a comment panel.
type CommentThreadView struct {
	Phase      Phase           `json:"phase"`
	Expanded   bool            `json:"expanded"`
	Comments   []model.Comment `json:"comments"`
	Draft      string          `json:"draft"`
	CanSubmit  bool            `json:"canSubmit"`
	Submitting bool            `json:"submitting"`
	Notices    []Notice        `json:"notices,omitempty"`
}

// CommentThread is the comment panel of a video, or the replies under one comment.
type CommentThread struct {
	*tracker
	gw       Backend
	sess     Session
	videoID  string
	parentID string

	expanded   bool
	comments   []model.Comment
	draft      string
	submitting bool
	replies    map[string]*CommentThread
}

// NewCommentThread creates a collapsed thread. parentID "" is the top level.
func NewCommentThread(gw Backend, sess Session, videoID, parentID string, logger *slog.Logger) *CommentThread {
	return &CommentThread{
		tracker:  newTracker(logger),
		gw:       gw,
		sess:     sess,
		videoID:  videoID,
		parentID: parentID,
		replies:  map[string]*CommentThread{},
	}
}

// Expand opens the thread and fetches its comments.
func (t *CommentThread) Expand(ctx context.Context) error {
	t.mu.Lock()
	t.expanded = true
	t.mu.Unlock()
	return t.Load(ctx)
}

// Collapse hides the thread, keeping what was loaded.
func (t *CommentThread) Collapse() {
	t.mu.Lock()
	t.expanded = false
	t.mu.Unlock()
}

// Load fetches the thread, newest first.
func (t *CommentThread) Load(ctx context.Context) error {
	gen := t.begin()
	comments, err := t.gw.ListComments(ctx, t.videoID, t.parentID)
	if err != nil {
		return t.fail(ctx, gen, err, "Failed to load comments")
	}
	t.commit(gen, func() { t.comments = comments })
	return nil
}

// SetDraft replaces the compose text.
func (t *CommentThread) SetDraft(s string) {
	t.mu.Lock()
	t.draft = s
	t.mu.Unlock()
}

// CanSubmit reports whether the submit control is enabled: a signed-in viewer,
// a draft with non-whitespace content, and no submission in flight.
func (t *CommentThread) CanSubmit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canSubmitLocked()
}

func (t *CommentThread) canSubmitLocked() bool {
	return !t.submitting && strings.TrimSpace(t.draft) != "" && viewerID(t.sess) != ""
}

// Submit posts the draft. The new comment is prepended only once the backend
// returns it.
func (t *CommentThread) Submit(ctx context.Context) (*model.Comment, error) {
	user, err := t.sess.Require()
	if err != nil {
		return nil, t.needSignIn("comment")
	}
	t.mu.Lock()
	if t.submitting {
		t.mu.Unlock()
		return nil, busy()
	}
	content := strings.TrimSpace(t.draft)
	if content == "" {
		t.mu.Unlock()
		return nil, errordefs.Validation("comment cannot be empty")
	}
	t.submitting = true
	t.mu.Unlock()

	c, err := t.gw.AddComment(ctx, model.NewComment{VideoID: t.videoID, UserID: user.ID, ParentID: t.parentID, Content: content})

	t.mu.Lock()
	t.submitting = false
	if err == nil {
		t.comments = append([]model.Comment{*c}, t.comments...)
		t.draft = ""
	}
	t.mu.Unlock()
	if err != nil {
		return nil, t.warn(ctx, err, "Failed to post comment")
	}
	return c, nil
}

// Replies returns the reply thread under commentID, creating it on first use.
func (t *CommentThread) Replies(commentID string) *CommentThread {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.replies[commentID]
	if !ok {
		r = NewCommentThread(t.gw, t.sess, t.videoID, commentID, t.logger)
		t.replies[commentID] = r
	}
	return r
}

// Snapshot returns the current state.
func (t *CommentThread) Snapshot() CommentThreadView {
	notices := t.Notices()
	t.mu.Lock()
	defer t.mu.Unlock()
	return CommentThreadView{
		Phase:      t.phase,
		Expanded:   t.expanded,
		Comments:   append([]model.Comment{}, t.comments...),
		Draft:      t.draft,
		CanSubmit:  t.canSubmitLocked(),
		Submitting: t.submitting,
		Notices:    notices,
	}
}
