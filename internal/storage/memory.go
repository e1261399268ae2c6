package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

type pairKey struct{ a, b string }

// memory implements the Store interface using in-memory maps.
// It emulates the backend procedures and notification triggers and is
// intended for development and testing.
type memory struct {
	mu sync.RWMutex // Protects every map below

	profiles      map[string]*model.Profile
	usernames     map[string]string // lower(username) -> profile id
	videos        map[string]*model.Video
	likes         map[pairKey]bool                // (video, user)
	subscriptions map[pairKey]*model.Subscription // (channel, subscriber)
	comments      map[string]*model.Comment
	playlists     map[string]*model.Playlist
	playlistItems map[string][]*model.PlaylistVideo
	notifications map[string]*model.Notification
	chats         map[string]*model.Chat
	messages      map[string][]*model.Message
	wallets       map[string]*model.Wallet
	walletByUser  map[string]string
	transactions  map[string][]*model.Transaction
	preferences   map[string]model.Preferences

	lastStamp time.Time
}

// NewMemory creates a new in-memory storage implementation.
// Returns a Store interface that can be used for testing or development.
func NewMemory() Store {
	return &memory{
		profiles:      make(map[string]*model.Profile),
		usernames:     make(map[string]string),
		videos:        make(map[string]*model.Video),
		likes:         make(map[pairKey]bool),
		subscriptions: make(map[pairKey]*model.Subscription),
		comments:      make(map[string]*model.Comment),
		playlists:     make(map[string]*model.Playlist),
		playlistItems: make(map[string][]*model.PlaylistVideo),
		notifications: make(map[string]*model.Notification),
		chats:         make(map[string]*model.Chat),
		messages:      make(map[string][]*model.Message),
		wallets:       make(map[string]*model.Wallet),
		walletByUser:  make(map[string]string),
		transactions:  make(map[string][]*model.Transaction),
		preferences:   make(map[string]model.Preferences),
	}
}

// stamp returns a strictly increasing timestamp so insertion order survives
// sorting by time. Callers hold m.mu.
func (m *memory) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(m.lastStamp) {
		now = m.lastStamp.Add(time.Microsecond)
	}
	m.lastStamp = now
	return now
}

func (m *memory) Ping(ctx context.Context) error { return nil }

// ---- profiles ----

func (m *memory) CreateProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := m.profiles[p.ID]; exists {
		return nil, ErrConflict
	}
	key := strings.ToLower(p.Username)
	if _, taken := m.usernames[key]; taken {
		return nil, ErrConflict
	}
	now := m.stamp()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.JoinDate.IsZero() {
		p.JoinDate = p.CreatedAt
	}
	p.UpdatedAt = now
	m.profiles[p.ID] = &p
	m.usernames[key] = p.ID
	out := p
	return &out, nil
}

func (m *memory) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *memory) FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usernames[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.profiles[id]
	return &out, nil
}

func (m *memory) SearchProfiles(ctx context.Context, prefix string, limit int) ([]model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	out := make([]model.Profile, 0)
	for _, p := range m.profiles {
		if strings.HasPrefix(strings.ToLower(p.Username), prefix) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) UpdateProfile(ctx context.Context, id string, u model.ProfileUpdate) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	oldKey := strings.ToLower(p.Username)
	if u.Username != nil {
		newKey := strings.ToLower(*u.Username)
		if owner, taken := m.usernames[newKey]; taken && owner != id {
			return nil, ErrConflict
		}
		delete(m.usernames, oldKey)
		m.usernames[newKey] = id
	}
	u.Apply(p)
	p.UpdatedAt = m.stamp()
	out := *p
	return &out, nil
}

func (m *memory) summary(id string) *model.ProfileSummary {
	if p, ok := m.profiles[id]; ok {
		return p.Summary()
	}
	return nil
}

// ---- videos ----

func (m *memory) copyVideo(v *model.Video) model.Video {
	out := *v
	out.Tags = append([]string{}, v.Tags...)
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		out.PublishedAt = &t
	}
	out.Owner = m.summary(v.UserID)
	return out
}

func (m *memory) ListVideos(ctx context.Context, q VideoQuery) ([]model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Video, 0)
	for _, v := range m.videos {
		if q.PublishedOnly && !v.IsPublished {
			continue
		}
		if q.Category != "" && v.Category != q.Category {
			continue
		}
		if q.IsShort != nil && v.IsShort != *q.IsShort {
			continue
		}
		if q.UserID != "" && v.UserID != q.UserID {
			continue
		}
		out = append(out, m.copyVideo(v))
	}
	order := q.Order
	if order.Column == "" {
		order = model.DefaultOrder
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareVideos(out[i], out[j], order.Column)
		if c == 0 {
			c = compareTime(out[i].CreatedAt, out[j].CreatedAt)
		}
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func compareVideos(a, b model.Video, column string) int {
	switch column {
	case "views":
		return compareInt(a.Views, b.Views)
	case "likes":
		return compareInt(a.Likes, b.Likes)
	case "duration":
		return compareInt(int64(a.Duration), int64(b.Duration))
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "published_at":
		var ta, tb time.Time
		if a.PublishedAt != nil {
			ta = *a.PublishedAt
		}
		if b.PublishedAt != nil {
			tb = *b.PublishedAt
		}
		return compareTime(ta, tb)
	default:
		return compareTime(a.CreatedAt, b.CreatedAt)
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (m *memory) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.copyVideo(v)
	return &out, nil
}

func (m *memory) CreateVideo(ctx context.Context, nv model.NewVideo) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.profiles[nv.UserID]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.stamp()
	v := &model.Video{
		ID:                  uuid.NewString(),
		UserID:              nv.UserID,
		Title:               nv.Title,
		Description:         nv.Description,
		ThumbnailURL:        nv.ThumbnailURL,
		VideoURL:            nv.VideoURL,
		Duration:            nv.Duration,
		IsPublished:         nv.IsPublished,
		IsPremium:           nv.IsPremium,
		IsShort:             nv.IsShort,
		Category:            nv.Category,
		Tags:                append([]string{}, nv.Tags...),
		Language:            nv.Language,
		Location:            nv.Location,
		AllowComments:       nv.AllowComments,
		MonetizationEnabled: nv.MonetizationEnabled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if nv.PublishedAt != nil {
		t := *nv.PublishedAt
		v.PublishedAt = &t
	} else if nv.IsPublished {
		v.PublishedAt = &now
	}
	m.videos[v.ID] = v
	if v.IsPublished {
		m.notifyUpload(owner, v)
	}
	out := m.copyVideo(v)
	return &out, nil
}

func (m *memory) UpdateVideo(ctx context.Context, id string, u model.VideoUpdate) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	wasPublished := v.IsPublished
	u.Apply(v)
	v.UpdatedAt = m.stamp()
	if !wasPublished && v.IsPublished {
		m.notifyUpload(m.profiles[v.UserID], v)
	}
	out := m.copyVideo(v)
	return &out, nil
}

func (m *memory) PublishDueVideos(ctx context.Context, now time.Time) ([]model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Video, 0)
	for _, v := range m.videos {
		if v.IsPublished || v.PublishedAt == nil || v.PublishedAt.After(now) {
			continue
		}
		v.IsPublished = true
		v.UpdatedAt = m.stamp()
		m.notifyUpload(m.profiles[v.UserID], v)
		out = append(out, m.copyVideo(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(*out[j].PublishedAt) })
	return out, nil
}

// ---- procedures ----

func (m *memory) IncrementVideoView(ctx context.Context, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[videoID]
	if !ok {
		return ErrNotFound
	}
	v.Views++
	if owner, ok := m.profiles[v.UserID]; ok {
		owner.TotalViews++
	}
	return nil
}

func (m *memory) ToggleVideoLike(ctx context.Context, videoID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[videoID]
	if !ok {
		return "", ErrNotFound
	}
	if _, ok := m.profiles[userID]; !ok {
		return "", ErrNotFound
	}
	key := pairKey{videoID, userID}
	if m.likes[key] {
		delete(m.likes, key)
		v.Likes--
		return ResultUnliked, nil
	}
	m.likes[key] = true
	v.Likes++
	return ResultLiked, nil
}

func (m *memory) ToggleSubscription(ctx context.Context, channelID, subscriberID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	channel, ok := m.profiles[channelID]
	if !ok {
		return "", ErrNotFound
	}
	subscriber, ok := m.profiles[subscriberID]
	if !ok {
		return "", ErrNotFound
	}
	if channelID == subscriberID {
		return "", fmt.Errorf("cannot subscribe to own channel")
	}
	key := pairKey{channelID, subscriberID}
	if _, exists := m.subscriptions[key]; exists {
		delete(m.subscriptions, key)
		channel.TotalSubscribers--
		return ResultUnsubscribed, nil
	}
	m.subscriptions[key] = &model.Subscription{
		ID:                uuid.NewString(),
		SubscriberID:      subscriberID,
		ChannelID:         channelID,
		NotificationLevel: model.NotifyAll,
		CreatedAt:         m.stamp(),
	}
	channel.TotalSubscribers++
	m.notify(channelID, subscriberID, "", model.NotificationSubscription,
		fmt.Sprintf("%s subscribed to your channel", subscriber.Username))
	return ResultSubscribed, nil
}

func (m *memory) HasLikedVideo(ctx context.Context, videoID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.likes[pairKey{videoID, userID}], nil
}

func (m *memory) IsSubscribed(ctx context.Context, channelID, subscriberID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subscriptions[pairKey{channelID, subscriberID}]
	return ok, nil
}

// ---- comments ----

func (m *memory) ListComments(ctx context.Context, videoID, parentID string) ([]model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Comment, 0)
	for _, c := range m.comments {
		if c.VideoID == videoID && c.ParentID == parentID {
			cp := *c
			cp.Author = m.summary(c.UserID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) CreateComment(ctx context.Context, nc model.NewComment) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[nc.VideoID]
	if !ok {
		return nil, ErrNotFound
	}
	author, ok := m.profiles[nc.UserID]
	if !ok {
		return nil, ErrNotFound
	}
	if nc.ParentID != "" {
		parent, ok := m.comments[nc.ParentID]
		if !ok || parent.VideoID != nc.VideoID {
			return nil, ErrNotFound
		}
	}
	now := m.stamp()
	c := &model.Comment{
		ID:        uuid.NewString(),
		VideoID:   nc.VideoID,
		UserID:    nc.UserID,
		ParentID:  nc.ParentID,
		Content:   nc.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.comments[c.ID] = c
	if v.UserID != nc.UserID {
		m.notify(v.UserID, nc.UserID, v.ID, model.NotificationComment,
			fmt.Sprintf("%s commented on your video: %s", author.Username, v.Title))
	}
	out := *c
	out.Author = author.Summary()
	return &out, nil
}

// ---- subscriptions ----

func (m *memory) ListSubscriptions(ctx context.Context, subscriberID string) ([]model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Subscription, 0)
	for key, s := range m.subscriptions {
		if key.b == subscriberID {
			cp := *s
			cp.Channel = m.summary(s.ChannelID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- playlists ----

func (m *memory) CreatePlaylist(ctx context.Context, p model.Playlist) (*model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.UserID]; !ok {
		return nil, ErrNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := m.playlists[p.ID]; exists {
		return nil, ErrConflict
	}
	now := m.stamp()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Owner = nil
	m.playlists[p.ID] = &p
	out := p
	out.Owner = m.summary(p.UserID)
	return &out, nil
}

func (m *memory) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	out.Owner = m.summary(p.UserID)
	return &out, nil
}

func (m *memory) ListPlaylists(ctx context.Context, q PlaylistQuery) ([]model.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Playlist, 0)
	for _, p := range m.playlists {
		if q.UserID != "" && p.UserID != q.UserID {
			continue
		}
		if q.PublicOnly && !p.IsPublic {
			continue
		}
		cp := *p
		cp.Owner = m.summary(p.UserID)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) ListPlaylistVideos(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.playlistItems[playlistID]
	out := make([]model.PlaylistVideo, 0, len(items))
	for _, item := range items {
		cp := *item
		if v, ok := m.videos[item.VideoID]; ok {
			vc := m.copyVideo(v)
			cp.Video = &vc
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memory) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (*model.PlaylistVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := m.videos[videoID]
	if !ok {
		return nil, ErrNotFound
	}
	position := 0
	for _, item := range m.playlistItems[playlistID] {
		if item.VideoID == videoID {
			return nil, ErrConflict
		}
		if item.Position >= position {
			position = item.Position + 1
		}
	}
	now := m.stamp()
	item := &model.PlaylistVideo{
		ID:         uuid.NewString(),
		PlaylistID: playlistID,
		VideoID:    videoID,
		Position:   position,
		AddedAt:    now,
	}
	m.playlistItems[playlistID] = append(m.playlistItems[playlistID], item)
	p.UpdatedAt = now
	out := *item
	vc := m.copyVideo(v)
	out.Video = &vc
	return &out, nil
}

// ---- notifications ----

// notify emulates the backend's notification triggers. Callers hold m.mu.
func (m *memory) notify(userID, senderID, videoID string, kind model.NotificationType, content string) {
	n := &model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		SenderID:  senderID,
		VideoID:   videoID,
		Type:      kind,
		Content:   content,
		CreatedAt: m.stamp(),
	}
	m.notifications[n.ID] = n
}

func (m *memory) notifyUpload(owner *model.Profile, v *model.Video) {
	if owner == nil {
		return
	}
	for key := range m.subscriptions {
		if key.a == owner.ID {
			m.notify(key.b, owner.ID, v.ID, model.NotificationUpload,
				fmt.Sprintf("%s uploaded: %s", owner.Username, v.Title))
		}
	}
}

func (m *memory) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID == userID {
			cp := *n
			cp.Sender = m.summary(n.SenderID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.IsRead = true
	out := *n
	out.Sender = m.summary(n.SenderID)
	return &out, nil
}

// ---- chats ----

func (m *memory) hydrateChat(c *model.Chat) model.Chat {
	out := *c
	out.Participants = make([]model.ChatParticipant, len(c.Participants))
	for i, p := range c.Participants {
		p.Profile = m.summary(p.UserID)
		out.Participants[i] = p
	}
	if msgs := m.messages[c.ID]; len(msgs) > 0 {
		last := *msgs[len(msgs)-1]
		last.Sender = m.summary(last.SenderID)
		out.LastMessage = &last
	}
	return out
}

func (m *memory) ListChats(ctx context.Context, userID string) ([]model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Chat, 0)
	for _, c := range m.chats {
		if c.HasParticipant(userID) {
			out = append(out, m.hydrateChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memory) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.hydrateChat(c)
	return &out, nil
}

func (m *memory) FindDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.chats {
		if c.IsGroup || len(c.Participants) != 2 {
			continue
		}
		if c.HasParticipant(userA) && c.HasParticipant(userB) {
			out := m.hydrateChat(c)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memory) CreateChat(ctx context.Context, nc model.NewChat) (*model.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := uniqueIDs(append([]string{nc.CreatorID}, nc.ParticipantIDs...))
	for _, id := range members {
		if _, ok := m.profiles[id]; !ok {
			return nil, ErrNotFound
		}
	}
	now := m.stamp()
	c := &model.Chat{
		ID:        uuid.NewString(),
		IsGroup:   nc.IsGroup,
		GroupName: nc.GroupName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, id := range members {
		c.Participants = append(c.Participants, model.ChatParticipant{
			ID:       uuid.NewString(),
			ChatID:   c.ID,
			UserID:   id,
			IsAdmin:  id == nc.CreatorID,
			JoinedAt: now,
		})
	}
	m.chats[c.ID] = c
	out := m.hydrateChat(c)
	return &out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (m *memory) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.chats[chatID]; !ok {
		return nil, ErrNotFound
	}
	msgs := m.messages[chatID]
	out := make([]model.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.IsDeleted {
			continue
		}
		cp := *msg
		cp.Sender = m.summary(msg.SenderID)
		out = append(out, cp)
	}
	return out, nil
}

func (m *memory) CreateMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[nm.ChatID]
	if !ok {
		return nil, ErrNotFound
	}
	if !c.HasParticipant(nm.SenderID) {
		return nil, fmt.Errorf("sender %s is not a participant of chat %s", nm.SenderID, nm.ChatID)
	}
	now := m.stamp()
	msg := &model.Message{
		ID:        uuid.NewString(),
		ChatID:    nm.ChatID,
		SenderID:  nm.SenderID,
		Content:   nm.Content,
		MediaURL:  nm.MediaURL,
		MediaType: nm.MediaType,
		ReplyTo:   nm.ReplyTo,
		CreatedAt: now,
	}
	m.messages[c.ID] = append(m.messages[c.ID], msg)
	c.UpdatedAt = now
	out := *msg
	out.Sender = m.summary(msg.SenderID)
	return &out, nil
}

// ---- wallets ----

func (m *memory) CreateWallet(ctx context.Context, w model.Wallet) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[w.UserID]; !ok {
		return nil, ErrNotFound
	}
	if _, exists := m.walletByUser[w.UserID]; exists {
		return nil, ErrConflict
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := m.stamp()
	w.CreatedAt, w.UpdatedAt = now, now
	m.wallets[w.ID] = &w
	m.walletByUser[w.UserID] = w.ID
	out := w
	return &out, nil
}

func (m *memory) GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.walletByUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.wallets[id]
	return &out, nil
}

func (m *memory) ListTransactions(ctx context.Context, walletID string) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := m.transactions[walletID]
	out := make([]model.Transaction, len(txs))
	for i, t := range txs {
		out[len(txs)-1-i] = *t
	}
	return out, nil
}

func (m *memory) ApplyTransaction(ctx context.Context, nt model.NewTransaction) (*model.Wallet, *model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[nt.WalletID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if !nt.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("amount must be positive")
	}
	balance := w.Balance
	if nt.Status != model.StatusFailed {
		if nt.Type.Credit() {
			balance = balance.Add(nt.Amount)
		} else {
			balance = balance.Sub(nt.Amount)
		}
	}
	if balance.LessThan(decimal.Zero) {
		return nil, nil, ErrInsufficientFunds
	}
	now := m.stamp()
	t := &model.Transaction{
		ID:          uuid.NewString(),
		WalletID:    nt.WalletID,
		Amount:      nt.Amount,
		Type:        nt.Type,
		Status:      nt.Status,
		ReferenceID: nt.ReferenceID,
		Description: nt.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.transactions[w.ID] = append(m.transactions[w.ID], t)
	w.Balance = balance
	w.UpdatedAt = now
	wc, tc := *w, *t
	return &wc, &tc, nil
}

// ---- preferences ----

func (m *memory) GetPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.profiles[userID]; !ok {
		return model.Preferences{}, ErrNotFound
	}
	if p, ok := m.preferences[userID]; ok {
		return p, nil
	}
	return model.DefaultPreferences(), nil
}

func (m *memory) SavePreferences(ctx context.Context, userID string, p model.Preferences) (model.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[userID]; !ok {
		return model.Preferences{}, ErrNotFound
	}
	m.preferences[userID] = p
	return p, nil
}
