package gateway

import (
	"context"
	"strings"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
)

// ListComments returns the top-level comments of a video (parentID "") or the
// replies to one comment, newest first.
func (g *Gateway) ListComments(ctx context.Context, videoID, parentID string) (out []model.Comment, err error) {
	ctx, done := g.begin(ctx, "list_comments")
	defer done(&err)
	return g.store.ListComments(ctx, videoID, parentID)
}

// AddComment stores a comment. Blank content is rejected before the backend is called.
func (g *Gateway) AddComment(ctx context.Context, nc model.NewComment) (c *model.Comment, err error) {
	ctx, done := g.begin(ctx, "create_comment")
	defer done(&err)

	nc.Content = strings.TrimSpace(nc.Content)
	if nc.Content == "" {
		return nil, errordefs.Validation("comment cannot be empty")
	}
	if err := g.validator.Validate(schema.CommentCreate, nc); err != nil {
		return nil, err
	}
	c, err = g.store.CreateComment(ctx, nc)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, "comment", g.events.PublishComment(ctx, *c))
	return c, nil
}

// ListSubscriptions returns the channels userID follows.
func (g *Gateway) ListSubscriptions(ctx context.Context, userID string) (out []model.Subscription, err error) {
	ctx, done := g.begin(ctx, "list_subscriptions")
	defer done(&err)
	return g.store.ListSubscriptions(ctx, userID)
}

// CreatePlaylist inserts a playlist owned by p.UserID.
func (g *Gateway) CreatePlaylist(ctx context.Context, p model.Playlist) (out *model.Playlist, err error) {
	ctx, done := g.begin(ctx, "create_playlist")
	defer done(&err)
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, errordefs.Validation("playlist title is required")
	}
	return g.store.CreatePlaylist(ctx, p)
}

// GetPlaylist fetches one playlist with its owner.
func (g *Gateway) GetPlaylist(ctx context.Context, id string) (p *model.Playlist, err error) {
	ctx, done := g.begin(ctx, "get_playlist")
	defer done(&err)
	return g.store.GetPlaylist(ctx, id)
}

// ListPlaylists lists a user's playlists; publicOnly hides private ones.
func (g *Gateway) ListPlaylists(ctx context.Context, userID string, publicOnly bool) (out []model.Playlist, err error) {
	ctx, done := g.begin(ctx, "list_playlists")
	defer done(&err)
	return g.store.ListPlaylists(ctx, storage.PlaylistQuery{UserID: userID, PublicOnly: publicOnly})
}

// ListPlaylistVideos returns the playlist's entries ordered by position.
func (g *Gateway) ListPlaylistVideos(ctx context.Context, playlistID string) (out []model.PlaylistVideo, err error) {
	ctx, done := g.begin(ctx, "list_playlist_videos")
	defer done(&err)
	return g.store.ListPlaylistVideos(ctx, playlistID)
}

// AddPlaylistVideo appends a video at the end of a playlist.
func (g *Gateway) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (out *model.PlaylistVideo, err error) {
	ctx, done := g.begin(ctx, "add_playlist_video")
	defer done(&err)
	return g.store.AddPlaylistVideo(ctx, playlistID, videoID)
}

// ListNotifications returns the user's notifications, newest first.
func (g *Gateway) ListNotifications(ctx context.Context, userID string) (out []model.Notification, err error) {
	ctx, done := g.begin(ctx, "list_notifications")
	defer done(&err)
	return g.store.ListNotifications(ctx, userID)
}

// MarkNotificationRead sets the read flag of one notification.
func (g *Gateway) MarkNotificationRead(ctx context.Context, id string) (out *model.Notification, err error) {
	ctx, done := g.begin(ctx, "mark_notification_read")
	defer done(&err)
	return g.store.MarkNotificationRead(ctx, id)
}
