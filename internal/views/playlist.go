package views

import (
	"context"
	"log/slog"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/present"
)

func errNoChannel() error { return errordefs.New(errordefs.VH_NOT_FOUND, "no channel loaded", "") }

// PlaylistView is a snapshot of a playlist page.
type PlaylistView struct {
	Phase         Phase                 `json:"phase"`
	NotFound      bool                  `json:"notFound"`
	Playlist      *model.Playlist       `json:"playlist,omitempty"`
	Entries       []model.PlaylistVideo `json:"entries"`
	TotalDuration string                `json:"totalDuration"`
	IsOwner       bool                  `json:"isOwner"`
	Notices       []Notice              `json:"notices,omitempty"`
}

// Playlist drives a playlist page.
type Playlist struct {
	*tracker
	gw   Backend
	sess Session

	playlist *model.Playlist
	entries  []model.PlaylistVideo
}

// NewPlaylist creates an idle playlist controller.
func NewPlaylist(gw Backend, sess Session, logger *slog.Logger) *Playlist {
	return &Playlist{tracker: newTracker(logger), gw: gw, sess: sess}
}

// reset drops the loaded playlist. Callers hold mu.
func (c *Playlist) reset() {
	c.playlist = nil
	c.entries = nil
}

// Load fetches the playlist and its entries ordered by position. Private
// playlists are reported as not found to everyone but their owner. An empty
// playlist is a normal ready state.
func (c *Playlist) Load(ctx context.Context, id string) error {
	gen := c.begin()

	pl, err := c.gw.GetPlaylist(ctx, id)
	if err != nil {
		if isNotFound(err) {
			c.missing(gen, "Playlist not found", c.reset)
			return nil
		}
		return c.fail(ctx, gen, err, "Failed to load playlist")
	}
	if !pl.IsPublic && viewerID(c.sess) != pl.UserID {
		c.missing(gen, "Playlist not found", c.reset)
		return nil
	}
	entries, err := c.gw.ListPlaylistVideos(ctx, pl.ID)
	if err != nil {
		return c.fail(ctx, gen, err, "Failed to load playlist")
	}
	c.commit(gen, func() {
		c.playlist = pl
		c.entries = entries
	})
	return nil
}

// AddVideo appends videoID to the playlist. Only the owner may do so.
func (c *Playlist) AddVideo(ctx context.Context, videoID string) (*model.PlaylistVideo, error) {
	user, err := c.sess.Require()
	if err != nil {
		return nil, c.needSignIn("edit playlists")
	}
	c.mu.Lock()
	pl := c.playlist
	c.mu.Unlock()
	if pl == nil {
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "no playlist loaded", "")
	}
	if pl.UserID != user.ID {
		return nil, errordefs.New(errordefs.VH_AUTHZ, "only the owner can add videos", "")
	}

	entry, err := c.gw.AddPlaylistVideo(ctx, pl.ID, videoID)
	if err != nil {
		return nil, c.warn(ctx, err, "Failed to add video to playlist")
	}
	if entry.Video == nil {
		if v, err := c.gw.GetVideo(ctx, videoID); err == nil {
			entry.Video = v
		}
	}
	c.mu.Lock()
	if c.playlist != nil && c.playlist.ID == pl.ID {
		c.entries = append(c.entries, *entry)
	}
	c.mu.Unlock()
	c.notify(NoticeSuccess, "Added to playlist")
	return entry, nil
}

// TotalSeconds sums the durations of the loaded entries.
func (c *Playlist) TotalSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalSeconds(c.entries)
}

func totalSeconds(entries []model.PlaylistVideo) int {
	total := 0
	for _, e := range entries {
		if e.Video != nil {
			total += e.Video.Duration
		}
	}
	return total
}

// Snapshot returns the current state.
func (c *Playlist) Snapshot() PlaylistView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	view := PlaylistView{
		Phase:         c.phase,
		NotFound:      c.notFound,
		Entries:       append([]model.PlaylistVideo{}, c.entries...),
		TotalDuration: present.PlaylistDuration(totalSeconds(c.entries)),
		Notices:       notices,
	}
	if c.playlist != nil {
		p := *c.playlist
		view.Playlist = &p
		view.IsOwner = viewerID(c.sess) == p.UserID
	}
	return view
}
