package views

import (
	"context"
	"log/slog"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/present"
)

// NotificationItem is a notification with its navigation target.
type NotificationItem struct {
	model.Notification
	Link string `json:"link"`
}

// NotificationsView is a snapshot of the notification dropdown.
type NotificationsView struct {
	Phase         Phase              `json:"phase"`
	Notifications []NotificationItem `json:"notifications"`
	Unread        int                `json:"unread"`
	Notices       []Notice           `json:"notices,omitempty"`
}

// Notifications drives the notification dropdown.
type Notifications struct {
	*tracker
	gw   Backend
	sess Session

	items []model.Notification
}

// NewNotifications creates an idle notifications controller.
func NewNotifications(gw Backend, sess Session, logger *slog.Logger) *Notifications {
	return &Notifications{tracker: newTracker(logger), gw: gw, sess: sess}
}

// Load fetches the viewer's notifications, newest first.
func (c *Notifications) Load(ctx context.Context) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("see notifications")
	}
	gen := c.begin()
	items, err := c.gw.ListNotifications(ctx, user.ID)
	if err != nil {
		return c.fail(ctx, gen, err, "Failed to load notifications")
	}
	c.commit(gen, func() { c.items = items })
	return nil
}

// Open marks notification id read, if it is not already, and returns where
// it links to.
func (c *Notifications) Open(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	idx := -1
	for i := range c.items {
		if c.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return "", errordefs.New(errordefs.VH_NOT_FOUND, "notification not found", "")
	}
	n := c.items[idx]
	c.mu.Unlock()

	link := present.NotificationLink(n)
	if n.IsRead {
		return link, nil
	}
	updated, err := c.gw.MarkNotificationRead(ctx, id)
	if err != nil {
		return link, c.warn(ctx, err, "Failed to update notification")
	}
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].IsRead = updated.IsRead
		}
	}
	c.mu.Unlock()
	return link, nil
}

// Unread counts unread notifications.
func (c *Notifications) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return unread(c.items)
}

func unread(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// Snapshot returns the current state.
func (c *Notifications) Snapshot() NotificationsView {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]NotificationItem, len(c.items))
	for i, n := range c.items {
		items[i] = NotificationItem{Notification: n, Link: present.NotificationLink(n)}
	}
	return NotificationsView{Phase: c.phase, Notifications: items, Unread: unread(c.items), Notices: notices}
}
