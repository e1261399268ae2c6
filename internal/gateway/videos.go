package gateway

import (
	"context"
	"strings"
	"time"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
)

// ListVideos returns published videos matching opts, ordered by opts.OrderBy
// (newest first by default) and truncated to opts.Limit. There is no cursor.
func (g *Gateway) ListVideos(ctx context.Context, opts model.VideoListOptions) (out []model.Video, err error) {
	ctx, done := g.begin(ctx, "list_videos")
	defer done(&err)

	order, err := model.ParseOrder(opts.OrderBy)
	if err != nil {
		return nil, errordefs.Validation(err.Error())
	}
	if opts.Limit < 0 {
		return nil, errordefs.Validation("limit must not be negative")
	}
	return g.store.ListVideos(ctx, storage.VideoQuery{
		PublishedOnly: true,
		Category:      opts.Category,
		IsShort:       opts.IsShort,
		UserID:        opts.UserID,
		Order:         order,
		Limit:         opts.Limit,
	})
}

// GetVideo fetches one video with its owner.
func (g *Gateway) GetVideo(ctx context.Context, id string) (v *model.Video, err error) {
	ctx, done := g.begin(ctx, "get_video")
	defer done(&err)
	return g.store.GetVideo(ctx, id)
}

// IncrementView calls the atomic view-increment procedure.
func (g *Gateway) IncrementView(ctx context.Context, videoID string) (err error) {
	ctx, done := g.begin(ctx, "increment_video_view")
	defer done(&err)
	return g.store.IncrementVideoView(ctx, videoID)
}

// ToggleLike flips the user's like on a video. The outcome comes solely from
// the procedure's result; an unrecognised literal is a backend error.
func (g *Gateway) ToggleLike(ctx context.Context, videoID, userID string) (t model.Toggled, err error) {
	ctx, done := g.begin(ctx, "toggle_video_like")
	defer done(&err)

	raw, err := g.store.ToggleVideoLike(ctx, videoID, userID)
	if err != nil {
		return model.ToggledOff, err
	}
	t, err = model.ParseLikeToggle(raw)
	if err != nil {
		return model.ToggledOff, errordefs.New(errordefs.VH_BACKEND, err.Error(), "")
	}
	g.emit(ctx, event.SubjectVideoLiked, g.events.PublishToggle(ctx, event.SubjectVideoLiked,
		event.Toggle{SubjectID: videoID, UserID: userID, State: t}))
	return t, nil
}

// ToggleSubscription flips subscriberID's subscription to channelID.
func (g *Gateway) ToggleSubscription(ctx context.Context, channelID, subscriberID string) (t model.Toggled, err error) {
	ctx, done := g.begin(ctx, "toggle_subscription")
	defer done(&err)

	if channelID == subscriberID {
		return model.ToggledOff, errordefs.Validation("you cannot subscribe to your own channel")
	}
	raw, err := g.store.ToggleSubscription(ctx, channelID, subscriberID)
	if err != nil {
		return model.ToggledOff, err
	}
	t, err = model.ParseSubscriptionToggle(raw)
	if err != nil {
		return model.ToggledOff, errordefs.New(errordefs.VH_BACKEND, err.Error(), "")
	}
	g.emit(ctx, event.SubjectSubscription, g.events.PublishToggle(ctx, event.SubjectSubscription,
		event.Toggle{SubjectID: channelID, UserID: subscriberID, State: t}))
	return t, nil
}

// HasLiked reports whether userID currently likes videoID.
func (g *Gateway) HasLiked(ctx context.Context, videoID, userID string) (ok bool, err error) {
	ctx, done := g.begin(ctx, "has_liked_video")
	defer done(&err)
	return g.store.HasLikedVideo(ctx, videoID, userID)
}

// IsSubscribed reports whether subscriberID follows channelID.
func (g *Gateway) IsSubscribed(ctx context.Context, channelID, subscriberID string) (ok bool, err error) {
	ctx, done := g.begin(ctx, "is_subscribed")
	defer done(&err)
	return g.store.IsSubscribed(ctx, channelID, subscriberID)
}

// CreateVideo validates and inserts a video record.
func (g *Gateway) CreateVideo(ctx context.Context, nv model.NewVideo) (v *model.Video, err error) {
	ctx, done := g.begin(ctx, "create_video")
	defer done(&err)

	nv.Title = strings.TrimSpace(nv.Title)
	if err := g.validator.Validate(schema.VideoCreate, nv); err != nil {
		return nil, err
	}
	if nv.Category != "" && !model.ValidCategory(nv.Category) {
		return nil, errordefs.Validation("unknown category " + nv.Category)
	}
	if nv.Language != "" && !model.ValidLanguage(nv.Language) {
		return nil, errordefs.Validation("unknown language " + nv.Language)
	}
	v, err = g.store.CreateVideo(ctx, nv)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, event.SubjectVideoUploaded, g.events.PublishVideo(ctx, event.SubjectVideoUploaded, *v))
	return v, nil
}

// UpdateVideo applies a partial update to a video.
func (g *Gateway) UpdateVideo(ctx context.Context, id string, u model.VideoUpdate) (v *model.Video, err error) {
	ctx, done := g.begin(ctx, "update_video")
	defer done(&err)
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, errordefs.Validation("title is required")
	}
	return g.store.UpdateVideo(ctx, id, u)
}

// PublishDueVideos publishes every scheduled video whose time has come.
func (g *Gateway) PublishDueVideos(ctx context.Context, now time.Time) (out []model.Video, err error) {
	ctx, done := g.begin(ctx, "publish_due_videos")
	defer done(&err)

	out, err = g.store.PublishDueVideos(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, v := range out {
		g.emit(ctx, event.SubjectVideoPublished, g.events.PublishVideo(ctx, event.SubjectVideoPublished, v))
	}
	return out, nil
}
