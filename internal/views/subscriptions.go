package views

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// ChannelVideoLimit caps the videos fetched per subscribed channel.
const ChannelVideoLimit = 50

// SubscriptionsView is a snapshot of the subscriptions feed.
type SubscriptionsView struct {
	Phase    Phase                `json:"phase"`
	Channels []model.Subscription `json:"channels"`
	Videos   []model.Video        `json:"videos"`
	Filter   string               `json:"filter,omitempty"`
	Empty    bool                 `json:"empty"`
	Notices  []Notice             `json:"notices,omitempty"`
}

// Subscriptions aggregates the latest videos of every subscribed channel.
type Subscriptions struct {
	*tracker
	gw   Backend
	sess Session

	subs   []model.Subscription
	videos []model.Video
	filter string
}

// NewSubscriptions creates an idle feed controller.
func NewSubscriptions(gw Backend, sess Session, logger *slog.Logger) *Subscriptions {
	return &Subscriptions{tracker: newTracker(logger), gw: gw, sess: sess}
}

// Load fetches the viewer's subscriptions and then each channel's videos
// concurrently, merged newest first. A channel whose videos fail to load is
// skipped with a notice.
func (c *Subscriptions) Load(ctx context.Context) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("see your subscriptions")
	}
	gen := c.begin()

	subs, err := c.gw.ListSubscriptions(ctx, user.ID)
	if err != nil {
		return c.fail(ctx, gen, err, "Failed to load subscriptions")
	}

	var (
		mu      sync.Mutex
		videos  []model.Video
		skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, s := range subs {
		s := s
		g.Go(func() error {
			list, err := c.gw.ListVideos(gctx, model.VideoListOptions{UserID: s.ChannelID, Limit: ChannelVideoLimit})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				c.logger.WarnContext(ctx, "channel videos failed",
					slog.String("channel_id", s.ChannelID), slog.String("error", err.Error()))
				return nil
			}
			videos = append(videos, list...)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(videos, func(i, j int) bool {
		return publishedAt(videos[i]).After(publishedAt(videos[j]))
	})
	c.commit(gen, func() {
		c.subs = subs
		c.videos = videos
		if skipped > 0 {
			c.notices = append(c.notices, Notice{Kind: NoticeError, Message: "Some channels could not be loaded"})
		}
	})
	return nil
}

func publishedAt(v model.Video) time.Time {
	if v.PublishedAt != nil {
		return *v.PublishedAt
	}
	return v.CreatedAt
}

// SetFilter restricts the feed to one channel; "" shows all.
func (c *Subscriptions) SetFilter(channelID string) {
	c.mu.Lock()
	c.filter = channelID
	c.mu.Unlock()
}

// Snapshot returns the current state with the filter applied.
func (c *Subscriptions) Snapshot() SubscriptionsView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	videos := make([]model.Video, 0, len(c.videos))
	for _, v := range c.videos {
		if c.filter == "" || v.UserID == c.filter {
			videos = append(videos, v)
		}
	}
	return SubscriptionsView{
		Phase:    c.phase,
		Channels: append([]model.Subscription{}, c.subs...),
		Videos:   videos,
		Filter:   c.filter,
		Empty:    c.phase == PhaseReady && len(c.subs) == 0,
		Notices:  notices,
	}
}
