package gateway

import (
	"context"
	"strings"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
)

// GetProfile fetches a profile by id.
func (g *Gateway) GetProfile(ctx context.Context, id string) (p *model.Profile, err error) {
	ctx, done := g.begin(ctx, "get_profile")
	defer done(&err)
	return g.store.GetProfile(ctx, id)
}

// CreateProfile inserts a profile row, used when a signed-in user has none yet.
func (g *Gateway) CreateProfile(ctx context.Context, p model.Profile) (out *model.Profile, err error) {
	ctx, done := g.begin(ctx, "create_profile")
	defer done(&err)
	if strings.TrimSpace(p.Username) == "" {
		return nil, errordefs.Validation("username is required")
	}
	return g.store.CreateProfile(ctx, p)
}

// FindProfileByUsername looks a profile up by exact username, ignoring case.
func (g *Gateway) FindProfileByUsername(ctx context.Context, username string) (p *model.Profile, err error) {
	ctx, done := g.begin(ctx, "find_profile_by_username")
	defer done(&err)
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, errordefs.Validation("username is required")
	}
	return g.store.FindProfileByUsername(ctx, username)
}

// SearchProfiles returns up to limit profiles whose username starts with prefix.
func (g *Gateway) SearchProfiles(ctx context.Context, prefix string, limit int) (out []model.Profile, err error) {
	ctx, done := g.begin(ctx, "search_profiles")
	defer done(&err)
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "@")
	if prefix == "" {
		return []model.Profile{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return g.store.SearchProfiles(ctx, prefix, limit)
}

// UpdateProfile applies an explicit partial update and returns the stored row.
func (g *Gateway) UpdateProfile(ctx context.Context, id string, u model.ProfileUpdate) (p *model.Profile, err error) {
	ctx, done := g.begin(ctx, "update_profile")
	defer done(&err)
	if u.Empty() {
		return nil, errordefs.Validation("nothing to update")
	}
	if err := g.validator.Validate(schema.ProfileUpdate, u); err != nil {
		return nil, err
	}
	return g.store.UpdateProfile(ctx, id, u)
}

// GetPreferences returns the user's settings, defaults when never saved.
func (g *Gateway) GetPreferences(ctx context.Context, userID string) (p model.Preferences, err error) {
	ctx, done := g.begin(ctx, "get_preferences")
	defer done(&err)
	return g.store.GetPreferences(ctx, userID)
}

// SavePreferences stores the user's settings.
func (g *Gateway) SavePreferences(ctx context.Context, userID string, prefs model.Preferences) (p model.Preferences, err error) {
	ctx, done := g.begin(ctx, "save_preferences")
	defer done(&err)
	return g.store.SavePreferences(ctx, userID, prefs)
}
