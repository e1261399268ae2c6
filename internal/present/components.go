package present

import (
	"net/url"
	"strings"
	"time"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// VideoCard is the display form of a video in grids and lists.
type VideoCard struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
	Duration      string `json:"duration"`
	Views         string `json:"views"`
	Age           string `json:"age"`
	Href          string `json:"href"`
	IsShort       bool   `json:"isShort"`
	IsPremium     bool   `json:"isPremium"`
	ChannelName   string `json:"channelName,omitempty"`
	ChannelAvatar string `json:"channelAvatar,omitempty"`
	ChannelHref   string `json:"channelHref,omitempty"`
	Verified      bool   `json:"verified"`
}

// Card builds the card for v as seen at now.
func Card(v model.Video, now time.Time) VideoCard {
	published := v.CreatedAt
	if v.PublishedAt != nil {
		published = *v.PublishedAt
	}
	c := VideoCard{
		ID:           v.ID,
		Title:        v.Title,
		ThumbnailURL: v.ThumbnailURL,
		Duration:     FormatDuration(v.Duration),
		Views:        FormatCount(v.Views) + " views",
		Age:          TimeAgo(published, now),
		Href:         VideoPath(v.ID),
		IsShort:      v.IsShort,
		IsPremium:    v.IsPremium,
		ChannelHref:  ChannelPath(v.UserID),
	}
	if v.Owner != nil {
		c.ChannelName = displayName(v.Owner)
		c.ChannelAvatar = v.Owner.AvatarURL
		c.Verified = v.Owner.IsVerified
	}
	return c
}

// Cards maps Card over videos.
func Cards(videos []model.Video, now time.Time) []VideoCard {
	out := make([]VideoCard, len(videos))
	for i, v := range videos {
		out[i] = Card(v, now)
	}
	return out
}

// VideoPath is the app route of a video.
func VideoPath(id string) string { return "/app/video/" + url.PathEscape(id) }

// ChannelPath is the app route of a channel, by id or username.
func ChannelPath(idOrUsername string) string { return "/app/channel/" + url.PathEscape(idOrUsername) }

// ShareURL is the absolute watch link offered by the share action.
func ShareURL(baseURL, videoID string) string {
	return strings.TrimRight(baseURL, "/") + VideoPath(videoID)
}

// CommentNode is a comment with its replies.
type CommentNode struct {
	Comment model.Comment `json:"comment"`
	Replies []CommentNode `json:"replies,omitempty"`
}

// CommentTree nests comments under their parents, keeping input order at each
// level. Replies whose parent is absent are shown at the top level.
func CommentTree(comments []model.Comment) []CommentNode {
	present := make(map[string]bool, len(comments))
	children := make(map[string][]model.Comment)
	for _, c := range comments {
		present[c.ID] = true
	}
	var roots []model.Comment
	for _, c := range comments {
		if c.ParentID != "" && present[c.ParentID] && c.ParentID != c.ID {
			children[c.ParentID] = append(children[c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}
	var build func(cs []model.Comment, depth int) []CommentNode
	build = func(cs []model.Comment, depth int) []CommentNode {
		nodes := make([]CommentNode, 0, len(cs))
		for _, c := range cs {
			n := CommentNode{Comment: c}
			if depth < len(comments) {
				n.Replies = build(children[c.ID], depth+1)
			}
			nodes = append(nodes, n)
		}
		return nodes
	}
	return build(roots, 0)
}

// NotificationLink is where opening a notification navigates.
func NotificationLink(n model.Notification) string {
	switch n.Type {
	case model.NotificationUpload:
		if n.VideoID != "" {
			return VideoPath(n.VideoID)
		}
	case model.NotificationComment:
		if n.VideoID != "" {
			return VideoPath(n.VideoID) + "?comment=true"
		}
	case model.NotificationSubscription:
		if n.Sender != nil && n.Sender.Username != "" {
			return ChannelPath(n.Sender.Username)
		}
	}
	return "#"
}

// ChatName is the title of a conversation as seen by viewerID: the group name,
// or the other participant's name in a direct chat.
func ChatName(c model.Chat, viewerID string) string {
	if c.IsGroup {
		if c.GroupName != "" {
			return c.GroupName
		}
		return "Group chat"
	}
	for _, p := range c.Participants {
		if p.UserID != viewerID && p.Profile != nil {
			return displayName(p.Profile)
		}
	}
	return "Unknown User"
}

// ChatAvatar is the image shown next to a conversation.
func ChatAvatar(c model.Chat, viewerID string) string {
	if c.IsGroup {
		return c.GroupAvatarURL
	}
	for _, p := range c.Participants {
		if p.UserID != viewerID && p.Profile != nil {
			return p.Profile.AvatarURL
		}
	}
	return ""
}

const previewLength = 30

// LastMessagePreview summarises the latest message of a conversation.
func LastMessagePreview(m *model.Message) string {
	switch {
	case m == nil:
		return "No messages yet"
	case m.IsDeleted:
		return "This message was deleted"
	case m.Content == "" && m.MediaURL != "":
		return "Media message"
	}
	r := []rune(m.Content)
	if len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return m.Content
}

func displayName(p *model.ProfileSummary) string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// NavItem is one sidebar entry.
type NavItem struct {
	Label        string `json:"label"`
	Href         string `json:"href"`
	Active       bool   `json:"active"`
	RequiresAuth bool   `json:"requiresAuth"`
}

var navigation = []NavItem{
	{Label: "Home", Href: "/app"},
	{Label: "Subscriptions", Href: "/app/subscriptions", RequiresAuth: true},
	{Label: "Upload", Href: "/app/upload", RequiresAuth: true},
	{Label: "Messages", Href: "/app/chat", RequiresAuth: true},
	{Label: "Wallet", Href: "/app/wallet", RequiresAuth: true},
	{Label: "Settings", Href: "/app/settings", RequiresAuth: true},
}

// SidebarNav lists the entries visible to the viewer, marking the one that
// matches currentPath. Gated entries are hidden when signed out.
func SidebarNav(signedIn bool, currentPath string) []NavItem {
	out := make([]NavItem, 0, len(navigation))
	for _, item := range navigation {
		if item.RequiresAuth && !signedIn {
			continue
		}
		if item.Href == "/app" {
			item.Active = currentPath == "/app" || currentPath == "/app/"
		} else {
			item.Active = currentPath == item.Href || strings.HasPrefix(currentPath, item.Href+"/")
		}
		out = append(out, item)
	}
	return out
}
