package views

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// RelatedLimit caps the related-videos rail.
const RelatedLimit = 10

// VideoView is a snapshot of the watch page.
type VideoView struct {
	Phase         Phase         `json:"phase"`
	NotFound      bool          `json:"notFound"`
	Video         *model.Video  `json:"video,omitempty"`
	Related       []model.Video `json:"related"`
	Liked         bool          `json:"liked"`
	Subscribed    bool          `json:"subscribed"`
	IsOwner       bool          `json:"isOwner"`
	LikeBusy      bool          `json:"likeBusy"`
	SubscribeBusy bool          `json:"subscribeBusy"`
	ShowComments  bool          `json:"showComments"`
	Notices       []Notice      `json:"notices,omitempty"`
}

// Video drives the watch page: the video, related videos, and the like and
// subscribe controls.
type Video struct {
	*tracker
	gw   Backend
	sess Session

	video         *model.Video
	related       []model.Video
	liked         bool
	subscribed    bool
	likeBusy      bool
	subscribeBusy bool
	showComments  bool

	Comments *CommentThread
}

// NewVideo creates an idle watch-page controller.
func NewVideo(gw Backend, sess Session, logger *slog.Logger) *Video {
	return &Video{tracker: newTracker(logger), gw: gw, sess: sess}
}

// reset drops the loaded video. Callers hold mu.
func (c *Video) reset() {
	c.video = nil
	c.related = nil
	c.liked = false
	c.subscribed = false
	c.showComments = false
	c.Comments = nil
}

// Load fetches video id, records a view, and loads the related rail and the
// viewer's like and subscription state. expandComments opens the comment
// thread straight away.
func (c *Video) Load(ctx context.Context, id string, expandComments bool) error {
	gen := c.begin()

	v, err := c.gw.GetVideo(ctx, id)
	if err != nil {
		if isNotFound(err) {
			c.missing(gen, "Video not found", c.reset)
			return nil
		}
		return c.fail(ctx, gen, err, "Failed to load video")
	}

	if err := c.gw.IncrementView(ctx, v.ID); err != nil {
		c.logger.WarnContext(ctx, "view increment failed", slog.String("video_id", v.ID), slog.String("error", err.Error()))
	}

	viewer := viewerID(c.sess)
	var (
		related    []model.Video
		liked      bool
		subscribed bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := c.gw.ListVideos(gctx, model.VideoListOptions{Category: v.Category, Limit: RelatedLimit + 1})
		if err != nil {
			c.logger.WarnContext(ctx, "related videos failed", slog.String("error", err.Error()))
			return nil
		}
		related = excludeVideo(list, v.ID, RelatedLimit)
		return nil
	})
	if viewer != "" {
		g.Go(func() error {
			ok, err := c.gw.HasLiked(gctx, v.ID, viewer)
			liked = ok
			return err
		})
		if viewer != v.UserID {
			g.Go(func() error {
				ok, err := c.gw.IsSubscribed(gctx, v.UserID, viewer)
				subscribed = ok
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return c.fail(ctx, gen, err, "Failed to load video")
	}

	thread := NewCommentThread(c.gw, c.sess, v.ID, "", c.logger)
	if !c.commit(gen, func() {
		c.video = v
		c.related = related
		c.liked = liked
		c.subscribed = subscribed
		c.showComments = expandComments
		c.Comments = thread
	}) {
		return nil
	}
	if expandComments && v.AllowComments {
		_ = thread.Expand(ctx)
	}
	return nil
}

func excludeVideo(list []model.Video, id string, limit int) []model.Video {
	out := make([]model.Video, 0, len(list))
	for _, v := range list {
		if v.ID != id {
			out = append(out, v)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ToggleLike flips the viewer's like. The counter moves only by the delta the
// backend's outcome implies.
func (c *Video) ToggleLike(ctx context.Context) (model.Toggled, error) {
	user, err := c.sess.Require()
	if err != nil {
		return model.ToggledOff, c.needSignIn("like videos")
	}
	c.mu.Lock()
	if c.video == nil {
		c.mu.Unlock()
		return model.ToggledOff, errNoVideo()
	}
	if c.likeBusy {
		c.mu.Unlock()
		return model.ToggledOff, busy()
	}
	c.likeBusy = true
	videoID := c.video.ID
	c.mu.Unlock()

	t, err := c.gw.ToggleLike(ctx, videoID, user.ID)

	c.mu.Lock()
	c.likeBusy = false
	if err == nil && c.video != nil && c.video.ID == videoID {
		c.liked = t.On()
		c.video.Likes += t.Delta()
	}
	c.mu.Unlock()
	if err != nil {
		return model.ToggledOff, c.warn(ctx, err, "Failed to update like")
	}
	return t, nil
}

// ToggleSubscribe flips the viewer's subscription to the video's channel.
func (c *Video) ToggleSubscribe(ctx context.Context) (model.Toggled, error) {
	user, err := c.sess.Require()
	if err != nil {
		return model.ToggledOff, c.needSignIn("subscribe")
	}
	c.mu.Lock()
	if c.video == nil {
		c.mu.Unlock()
		return model.ToggledOff, errNoVideo()
	}
	if c.subscribeBusy {
		c.mu.Unlock()
		return model.ToggledOff, busy()
	}
	c.subscribeBusy = true
	videoID, channelID := c.video.ID, c.video.UserID
	c.mu.Unlock()

	t, err := c.gw.ToggleSubscription(ctx, channelID, user.ID)

	c.mu.Lock()
	c.subscribeBusy = false
	if err == nil && c.video != nil && c.video.ID == videoID {
		c.subscribed = t.On()
		if c.video.Owner != nil {
			c.video.Owner.TotalSubscribers += t.Delta()
		}
	}
	c.mu.Unlock()
	if err != nil {
		return model.ToggledOff, c.warn(ctx, err, "Failed to update subscription")
	}
	if t.On() {
		c.notify(NoticeSuccess, "Subscribed")
	} else {
		c.notify(NoticeInfo, "Unsubscribed")
	}
	return t, nil
}

// SetShowComments expands or collapses the comment panel.
func (c *Video) SetShowComments(ctx context.Context, show bool) error {
	c.mu.Lock()
	c.showComments = show
	thread := c.Comments
	c.mu.Unlock()
	if show && thread != nil {
		return thread.Expand(ctx)
	}
	if thread != nil {
		thread.Collapse()
	}
	return nil
}

// Snapshot returns the current state.
func (c *Video) Snapshot() VideoView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	view := VideoView{
		Phase:         c.phase,
		NotFound:      c.notFound,
		Related:       append([]model.Video{}, c.related...),
		Liked:         c.liked,
		Subscribed:    c.subscribed,
		LikeBusy:      c.likeBusy,
		SubscribeBusy: c.subscribeBusy,
		ShowComments:  c.showComments,
		Notices:       notices,
	}
	if c.video != nil {
		v := *c.video
		if v.Owner != nil {
			owner := *v.Owner
			v.Owner = &owner
		}
		view.Video = &v
		view.IsOwner = viewerID(c.sess) == v.UserID
	}
	return view
}
