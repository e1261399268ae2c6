// Package model defines the entity types exchanged between the backend
// gateway, the view controllers and the HTTP surface.
// Each type maps one backend table row onto a stable internal shape.
package model

import (
	"time"
)

// User is the authenticated identity as reported by the auth service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Profile represents a channel/user profile.
// This corresponds to the profiles table in storage.
type Profile struct {
	ID               string     `json:"id" db:"id"`
	Username         string     `json:"username" db:"username"`
	FullName         string     `json:"fullName,omitempty" db:"full_name"`
	AvatarURL        string     `json:"avatarUrl,omitempty" db:"avatar_url"`
	BannerURL        string     `json:"bannerUrl,omitempty" db:"banner_url"`
	Bio              string     `json:"bio,omitempty" db:"bio"`
	ChannelURL       string     `json:"channelUrl,omitempty" db:"channel_url"`
	IsVerified       bool       `json:"isVerified" db:"is_verified"`
	TotalSubscribers int64      `json:"totalSubscribers" db:"total_subscribers"` // Maintained by toggle_subscription
	TotalViews       int64      `json:"totalViews" db:"total_views"`             // Maintained by increment_video_view
	IsPremium        bool       `json:"isPremium" db:"is_premium"`
	PremiumSince     *time.Time `json:"premiumSince,omitempty" db:"premium_since"`
	JoinDate         time.Time  `json:"joinDate" db:"join_date"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// Summary returns the subset of the profile embedded in other rows.
func (p Profile) Summary() *ProfileSummary {
	return &ProfileSummary{
		ID:               p.ID,
		Username:         p.Username,
		FullName:         p.FullName,
		AvatarURL:        p.AvatarURL,
		IsVerified:       p.IsVerified,
		TotalSubscribers: p.TotalSubscribers,
	}
}

// DisplayName prefers the full name and falls back to the username.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// ProfileSummary is the joined profile shape attached to videos, comments,
// messages and notifications.
type ProfileSummary struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	FullName         string `json:"fullName,omitempty"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	IsVerified       bool   `json:"isVerified"`
	TotalSubscribers int64  `json:"totalSubscribers"`
}

// ProfileUpdate enumerates the mutable profile fields. Nil pointers are left unchanged.
type ProfileUpdate struct {
	Username   *string `json:"username,omitempty"`
	FullName   *string `json:"fullName,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	ChannelURL *string `json:"channelUrl,omitempty"`
	AvatarURL  *string `json:"avatarUrl,omitempty"`
	BannerURL  *string `json:"bannerUrl,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.FullName == nil && u.Bio == nil &&
		u.ChannelURL == nil && u.AvatarURL == nil && u.BannerURL == nil
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.ChannelURL != nil {
		p.ChannelURL = *u.ChannelURL
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	if u.BannerURL != nil {
		p.BannerURL = *u.BannerURL
	}
}

// Preferences holds per-user notification and privacy settings.
type Preferences struct {
	EmailNotifications        bool `json:"emailNotifications"`
	SubscriptionNotifications bool `json:"subscriptionNotifications"`
	CommentNotifications      bool `json:"commentNotifications"`
	MentionNotifications      bool `json:"mentionNotifications"`
	ShowSubscriptions         bool `json:"showSubscriptions"`
	ShowLikedVideos           bool `json:"showLikedVideos"`
	ShowSavedPlaylists        bool `json:"showSavedPlaylists"`
}

// DefaultPreferences is used for users who never saved any settings.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications:        true,
		SubscriptionNotifications: true,
		CommentNotifications:      true,
		MentionNotifications:      true,
		ShowSubscriptions:         true,
		ShowLikedVideos:           false,
		ShowSavedPlaylists:        true,
	}
}
