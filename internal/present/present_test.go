package present

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1.2K", FormatCount(1234))
	assert.Equal(t, "1.0M", FormatCount(1_000_000))
	assert.Equal(t, "2.5M", FormatCount(2_500_000))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:05", FormatDuration(5))
	assert.Equal(t, "4:07", FormatDuration(247))
	assert.Equal(t, "1:01:01", FormatDuration(3661))
	assert.Equal(t, "1 hr 1 min", PlaylistDuration(3661))
	assert.Equal(t, "4 min", PlaylistDuration(247))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "₹1,234.50", FormatAmount(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "₹0.00", FormatAmount(decimal.Zero))
	assert.Equal(t, "-₹500.00", FormatAmount(decimal.NewFromInt(-500)))
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "less than a minute ago"},
		{1 * time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{50 * time.Minute, "about 1 hour ago"},
		{3 * time.Hour, "about 3 hours ago"},
		{30 * time.Hour, "1 day ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{35 * 24 * time.Hour, "about 1 month ago"},
		{100 * 24 * time.Hour, "3 months ago"},
		{370 * 24 * time.Hour, "about 1 year ago"},
		{(365 + 200) * 24 * time.Hour, "over 1 year ago"},
		{(365 + 330) * 24 * time.Hour, "almost 2 years ago"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TimeAgo(now.Add(-tc.ago), now), tc.ago.String())
	}
	assert.Equal(t, "in 5 minutes", TimeAgo(now.Add(5*time.Minute), now))
}

func TestCard(t *testing.T) {
	now := time.Now()
	v := model.Video{
		ID: "v1", UserID: "u1", Title: "Clip", Duration: 75, Views: 1500, CreatedAt: now.Add(-2 * time.Hour),
		Owner: &model.ProfileSummary{Username: "alice", FullName: "Alice A", IsVerified: true},
	}
	c := Card(v, now)
	assert.Equal(t, "1:15", c.Duration)
	assert.Equal(t, "1.5K views", c.Views)
	assert.Equal(t, "about 2 hours ago", c.Age)
	assert.Equal(t, "/app/video/v1", c.Href)
	assert.Equal(t, "Alice A", c.ChannelName)
	assert.True(t, c.Verified)
	assert.Equal(t, "https://vidhub.test/app/video/v1", ShareURL("https://vidhub.test/", "v1"))
}

func TestCommentTree(t *testing.T) {
	tree := CommentTree([]model.Comment{
		{ID: "a"},
		{ID: "b", ParentID: "a"},
		{ID: "c"},
		{ID: "d", ParentID: "b"},
		{ID: "e", ParentID: "gone"},
	})
	require.Len(t, tree, 3)
	assert.Equal(t, "a", tree[0].Comment.ID)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "d", tree[0].Replies[0].Replies[0].Comment.ID)
	assert.Equal(t, "e", tree[2].Comment.ID)
}

func TestNotificationLink(t *testing.T) {
	assert.Equal(t, "/app/video/v1", NotificationLink(model.Notification{Type: model.NotificationUpload, VideoID: "v1"}))
	assert.Equal(t, "/app/video/v1?comment=true", NotificationLink(model.Notification{Type: model.NotificationComment, VideoID: "v1"}))
	assert.Equal(t, "/app/channel/bob", NotificationLink(model.Notification{
		Type: model.NotificationSubscription, Sender: &model.ProfileSummary{Username: "bob"},
	}))
	assert.Equal(t, "#", NotificationLink(model.Notification{Type: model.NotificationLike, VideoID: "v1"}))
}

func TestChatNameAndPreview(t *testing.T) {
	direct := model.Chat{Participants: []model.ChatParticipant{
		{UserID: "me", Profile: &model.ProfileSummary{Username: "me"}},
		{UserID: "you", Profile: &model.ProfileSummary{Username: "bob"}},
	}}
	assert.Equal(t, "bob", ChatName(direct, "me"))
	assert.Equal(t, "Unknown User", ChatName(model.Chat{Participants: direct.Participants[:1]}, "me"))
	assert.Equal(t, "Crew", ChatName(model.Chat{IsGroup: true, GroupName: "Crew"}, "me"))

	assert.Equal(t, "No messages yet", LastMessagePreview(nil))
	assert.Equal(t, "Media message", LastMessagePreview(&model.Message{MediaURL: "x"}))
	assert.Equal(t, "hi", LastMessagePreview(&model.Message{Content: "hi"}))
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	assert.Equal(t, long[:30]+"...", LastMessagePreview(&model.Message{Content: long}))
}

func TestSidebarNav(t *testing.T) {
	out := SidebarNav(false, "/app")
	require.Len(t, out, 1)
	assert.True(t, out[0].Active)

	in := SidebarNav(true, "/app/chat/123")
	require.Len(t, in, 6)
	assert.False(t, in[0].Active)
	assert.True(t, in[3].Active)
}
