package views

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// AccountSession is the session surface the settings page writes through.
type AccountSession interface {
	Session
	UpdateUserProfile(ctx context.Context, u model.ProfileUpdate) (*model.Profile, error)
	SignOut(ctx context.Context) error
}

// ProfileForm holds the editable profile fields.
type ProfileForm struct {
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ChannelURL string `json:"channelUrl"`
	AvatarURL  string `json:"avatarUrl"`
	BannerURL  string `json:"bannerUrl"`
}

func formFrom(p *model.Profile) ProfileForm {
	return ProfileForm{
		Username:   p.Username,
		FullName:   p.FullName,
		Bio:        p.Bio,
		ChannelURL: p.ChannelURL,
		AvatarURL:  p.AvatarURL,
		BannerURL:  p.BannerURL,
	}
}

// diff returns an update holding only the fields f changes relative to p.
func (f ProfileForm) diff(p *model.Profile) model.ProfileUpdate {
	var u model.ProfileUpdate
	set := func(dst **string, next, cur string) {
		next = strings.TrimSpace(next)
		if next != cur {
			*dst = &next
		}
	}
	set(&u.Username, f.Username, p.Username)
	set(&u.FullName, f.FullName, p.FullName)
	set(&u.Bio, f.Bio, p.Bio)
	set(&u.ChannelURL, f.ChannelURL, p.ChannelURL)
	set(&u.AvatarURL, f.AvatarURL, p.AvatarURL)
	set(&u.BannerURL, f.BannerURL, p.BannerURL)
	return u
}

// SettingsView is a snapshot of the settings page.
type SettingsView struct {
	Phase       Phase             `json:"phase"`
	Profile     *model.Profile    `json:"profile,omitempty"`
	Form        ProfileForm       `json:"form"`
	Preferences model.Preferences `json:"preferences"`
	Saving      bool              `json:"saving"`
	SignedOut   bool              `json:"signedOut"`
	Notices     []Notice          `json:"notices,omitempty"`
}

// Settings drives the profile form and preferences.
type Settings struct {
	*tracker
	gw   Backend
	sess AccountSession

	profile   *model.Profile
	prefs     model.Preferences
	saving    bool
	signedOut bool
}

// NewSettings creates an idle settings controller.
func NewSettings(gw Backend, sess AccountSession, logger *slog.Logger) *Settings {
	return &Settings{tracker: newTracker(logger), gw: gw, sess: sess, prefs: model.DefaultPreferences()}
}

// Load fetches the profile and preferences concurrently.
func (c *Settings) Load(ctx context.Context) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("change settings")
	}
	gen := c.begin()
	var (
		profile *model.Profile
		prefs   model.Preferences
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = c.gw.GetProfile(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		prefs, err = c.gw.GetPreferences(gctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return c.fail(ctx, gen, err, "Failed to load settings")
	}
	c.commit(gen, func() {
		c.profile = profile
		c.prefs = prefs
	})
	return nil
}

// SaveProfile writes the changed fields through the session and replaces the
// local profile with the backend's row.
func (c *Settings) SaveProfile(ctx context.Context, form ProfileForm) (*model.Profile, error) {
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "profile not loaded", "")
	}
	if c.saving {
		c.mu.Unlock()
		return nil, busy()
	}
	if strings.TrimSpace(form.Username) == "" {
		c.mu.Unlock()
		return nil, errordefs.Validation("Username is required")
	}
	u := form.diff(c.profile)
	if u.Empty() {
		current := *c.profile
		c.mu.Unlock()
		c.notify(NoticeInfo, "No changes to save")
		return &current, nil
	}
	c.saving = true
	c.mu.Unlock()

	updated, err := c.sess.UpdateUserProfile(ctx, u)

	c.mu.Lock()
	c.saving = false
	if err == nil {
		c.profile = updated
	}
	c.mu.Unlock()
	if err != nil {
		return nil, c.warn(ctx, err, "Failed to update profile")
	}
	c.notify(NoticeSuccess, "Profile updated successfully")
	return updated, nil
}

// UploadImage stores an avatar or banner image and saves its URL on the profile.
func (c *Settings) UploadImage(ctx context.Context, kind string, body io.Reader, size int64, contentType string) (*model.Profile, error) {
	user, err := c.sess.Require()
	if err != nil {
		return nil, c.needSignIn("change settings")
	}
	buckets := c.gw.Buckets()
	var bucket string
	switch kind {
	case "avatar":
		bucket = buckets.Avatars
	case "banner":
		bucket = buckets.Banners
	default:
		return nil, errordefs.Validation("unknown image kind " + kind)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errordefs.New(errordefs.VH_MEDIA_TYPE, "please select an image file", "")
	}
	url, err := c.gw.UploadObject(ctx, media.UploadInput{
		Bucket:      bucket,
		Key:         media.ProfileImageKey(user.ID, kind, time.Now()),
		Body:        body,
		Size:        size,
		ContentType: contentType,
	})
	if err != nil {
		return nil, c.warn(ctx, err, "Failed to upload image")
	}

	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "profile not loaded", "")
	}
	form := formFrom(c.profile)
	c.mu.Unlock()
	if kind == "avatar" {
		form.AvatarURL = url
	} else {
		form.BannerURL = url
	}
	return c.SaveProfile(ctx, form)
}

// SavePreferences stores the preference toggles.
func (c *Settings) SavePreferences(ctx context.Context, prefs model.Preferences) (model.Preferences, error) {
	user, err := c.sess.Require()
	if err != nil {
		return model.Preferences{}, c.needSignIn("change settings")
	}
	saved, err := c.gw.SavePreferences(ctx, user.ID, prefs)
	if err != nil {
		return model.Preferences{}, c.warn(ctx, err, "Failed to save preferences")
	}
	c.mu.Lock()
	c.prefs = saved
	c.mu.Unlock()
	c.notify(NoticeSuccess, "Preferences saved")
	return saved, nil
}

// SignOut ends the session.
func (c *Settings) SignOut(ctx context.Context) error {
	err := c.sess.SignOut(ctx)
	c.mu.Lock()
	c.signedOut = true
	c.profile = nil
	c.mu.Unlock()
	if err != nil {
		c.logger.WarnContext(ctx, "remote sign out failed", slog.String("error", err.Error()))
	}
	return err
}

// Snapshot returns the current state.
func (c *Settings) Snapshot() SettingsView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	view := SettingsView{
		Phase:       c.phase,
		Preferences: c.prefs,
		Saving:      c.saving,
		SignedOut:   c.signedOut,
		Notices:     notices,
	}
	if c.profile != nil {
		p := *c.profile
		view.Profile = &p
		view.Form = formFrom(&p)
	}
	return view
}
