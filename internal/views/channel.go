package views

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// ChannelView is a snapshot of a channel page.
type ChannelView struct {
	Phase         Phase            `json:"phase"`
	NotFound      bool             `json:"notFound"`
	Profile       *model.Profile   `json:"profile,omitempty"`
	Videos        []model.Video    `json:"videos"`
	Shorts        []model.Video    `json:"shorts"`
	Playlists     []model.Playlist `json:"playlists"`
	Subscribed    bool             `json:"subscribed"`
	IsOwn         bool             `json:"isOwn"`
	SubscribeBusy bool             `json:"subscribeBusy"`
	Notices       []Notice         `json:"notices,omitempty"`
}

// Channel drives a channel page: profile, videos, shorts, playlists and the
// subscribe control.
type Channel struct {
	*tracker
	gw   Backend
	sess Session

	profile       *model.Profile
	videos        []model.Video
	shorts        []model.Video
	playlists     []model.Playlist
	subscribed    bool
	subscribeBusy bool
}

// NewChannel creates an idle channel controller.
func NewChannel(gw Backend, sess Session, logger *slog.Logger) *Channel {
	return &Channel{tracker: newTracker(logger), gw: gw, sess: sess}
}

// reset drops the loaded channel. Callers hold mu.
func (c *Channel) reset() {
	c.profile = nil
	c.videos = nil
	c.shorts = nil
	c.playlists = nil
	c.subscribed = false
}

// Load fetches the channel identified by id, falling back to a username lookup.
func (c *Channel) Load(ctx context.Context, idOrUsername string) error {
	gen := c.begin()

	profile, err := c.gw.GetProfile(ctx, idOrUsername)
	if isNotFound(err) {
		profile, err = c.gw.FindProfileByUsername(ctx, idOrUsername)
	}
	if err != nil {
		if isNotFound(err) {
			c.missing(gen, "Channel not found", c.reset)
			return nil
		}
		return c.fail(ctx, gen, err, "Failed to load channel")
	}

	viewer := viewerID(c.sess)
	own := viewer == profile.ID
	var (
		videos, shorts []model.Video
		playlists      []model.Playlist
		subscribed     bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		videos, err = c.gw.ListVideos(gctx, model.VideoListOptions{UserID: profile.ID, IsShort: model.Bool(false)})
		return err
	})
	g.Go(func() error {
		var err error
		shorts, err = c.gw.ListVideos(gctx, model.VideoListOptions{UserID: profile.ID, IsShort: model.Bool(true)})
		return err
	})
	g.Go(func() error {
		var err error
		playlists, err = c.gw.ListPlaylists(gctx, profile.ID, !own)
		return err
	})
	if viewer != "" && !own {
		g.Go(func() error {
			var err error
			subscribed, err = c.gw.IsSubscribed(gctx, profile.ID, viewer)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return c.fail(ctx, gen, err, "Failed to load channel")
	}

	c.commit(gen, func() {
		c.profile = profile
		c.videos = videos
		c.shorts = shorts
		c.playlists = playlists
		c.subscribed = subscribed
	})
	return nil
}

// ToggleSubscribe flips the viewer's subscription and patches the subscriber
// total by the outcome's delta.
func (c *Channel) ToggleSubscribe(ctx context.Context) (model.Toggled, error) {
	user, err := c.sess.Require()
	if err != nil {
		return model.ToggledOff, c.needSignIn("subscribe")
	}
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return model.ToggledOff, errNoChannel()
	}
	if c.subscribeBusy {
		c.mu.Unlock()
		return model.ToggledOff, busy()
	}
	c.subscribeBusy = true
	channelID := c.profile.ID
	c.mu.Unlock()

	t, err := c.gw.ToggleSubscription(ctx, channelID, user.ID)

	c.mu.Lock()
	c.subscribeBusy = false
	if err == nil && c.profile != nil && c.profile.ID == channelID {
		c.subscribed = t.On()
		c.profile.TotalSubscribers += t.Delta()
	}
	c.mu.Unlock()
	if err != nil {
		return model.ToggledOff, c.warn(ctx, err, "Failed to update subscription")
	}
	return t, nil
}

// Snapshot returns the current state.
func (c *Channel) Snapshot() ChannelView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	view := ChannelView{
		Phase:         c.phase,
		NotFound:      c.notFound,
		Videos:        append([]model.Video{}, c.videos...),
		Shorts:        append([]model.Video{}, c.shorts...),
		Playlists:     append([]model.Playlist{}, c.playlists...),
		Subscribed:    c.subscribed,
		SubscribeBusy: c.subscribeBusy,
		Notices:       notices,
	}
	if c.profile != nil {
		p := *c.profile
		view.Profile = &p
		view.IsOwn = viewerID(c.sess) == p.ID
	}
	return view
}
