package model

import "time"

// Comment represents a comment on a video; ParentID is empty for top-level comments.
// This corresponds to the comments table in storage.
type Comment struct {
	ID        string          `json:"id" db:"id"`
	VideoID   string          `json:"videoId" db:"video_id"`
	UserID    string          `json:"userId" db:"user_id"`
	ParentID  string          `json:"parentId,omitempty" db:"parent_id"`
	Content   string          `json:"content" db:"content"`
	Likes     int64           `json:"likes" db:"likes"`
	Dislikes  int64           `json:"dislikes" db:"dislikes"`
	IsPinned  bool            `json:"isPinned" db:"is_pinned"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
	Author    *ProfileSummary `json:"author,omitempty"`
}

// NewComment is the insert payload for a comment row.
type NewComment struct {
	VideoID  string `json:"videoId"`
	UserID   string `json:"userId"`
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

// Subscription links a subscriber to a channel.
type Subscription struct {
	ID                string          `json:"id" db:"id"`
	SubscriberID      string          `json:"subscriberId" db:"subscriber_id"`
	ChannelID         string          `json:"channelId" db:"channel_id"`
	NotificationLevel string          `json:"notificationLevel" db:"notification_level"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	Channel           *ProfileSummary `json:"channel,omitempty"`
}

// Notification levels for a subscription.
const (
	NotifyAll      = "all"
	NotifyPersonal = "personalized"
	NotifyNone     = "none"
)

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationUpload       NotificationType = "upload"
	NotificationComment      NotificationType = "comment"
	NotificationSubscription NotificationType = "subscription"
	NotificationLike         NotificationType = "like"
)

// Notification is created by backend triggers and read by its recipient.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"userId" db:"user_id"`
	SenderID  string           `json:"senderId,omitempty" db:"sender_id"`
	VideoID   string           `json:"videoId,omitempty" db:"video_id"`
	Type      NotificationType `json:"type" db:"type"`
	Content   string           `json:"content" db:"content"`
	IsRead    bool             `json:"isRead" db:"is_read"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	Sender    *ProfileSummary  `json:"sender,omitempty"`
}

// Playlist is an ordered collection of videos owned by a user.
type Playlist struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"userId" db:"user_id"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description,omitempty" db:"description"`
	ThumbnailURL string          `json:"thumbnailUrl,omitempty" db:"thumbnail_url"`
	IsPublic     bool            `json:"isPublic" db:"is_public"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
	Owner        *ProfileSummary `json:"owner,omitempty"`
}

// PlaylistVideo is the join row between a playlist and a video.
type PlaylistVideo struct {
	ID         string    `json:"id" db:"id"`
	PlaylistID string    `json:"playlistId" db:"playlist_id"`
	VideoID    string    `json:"videoId" db:"video_id"`
	Position   int       `json:"position" db:"position"`
	AddedAt    time.Time `json:"addedAt" db:"added_at"`
	Video      *Video    `json:"video,omitempty"`
}
