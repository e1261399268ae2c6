package views

import (
	"context"
	"log/slog"
	"strings"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/present"
)

// ConversationItem is one row of the conversation list.
type ConversationItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Preview string `json:"preview"`
	IsGroup bool   `json:"isGroup"`
	Active  bool   `json:"active"`
}

// ChatView is a snapshot of the messaging page.
type ChatView struct {
	Phase         Phase              `json:"phase"`
	Conversations []ConversationItem `json:"conversations"`
	ActiveID      string             `json:"activeId,omitempty"`
	Messages      []model.Message    `json:"messages"`
	Search        string             `json:"search,omitempty"`
	Sending       bool               `json:"sending"`
	Notices       []Notice           `json:"notices,omitempty"`
}

// Chat drives the conversation list and the active thread. Sending reloads
// the whole thread instead of appending locally.
type Chat struct {
	*tracker
	gw   Backend
	sess Session

	chats     []model.Chat
	activeID  string
	messages  []model.Message
	threadGen uint64
	search    string
	sending   bool
}

// NewChat creates an idle chat controller.
func NewChat(gw Backend, sess Session, logger *slog.Logger) *Chat {
	return &Chat{tracker: newTracker(logger), gw: gw, sess: sess}
}

// Load fetches the viewer's conversations and opens activeID, or the most
// recent conversation when activeID is empty.
func (c *Chat) Load(ctx context.Context, activeID string) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("use messages")
	}
	gen := c.begin()
	chats, err := c.gw.ListChats(ctx, user.ID)
	if err != nil {
		return c.fail(ctx, gen, err, "Failed to load conversations")
	}
	if activeID == "" && len(chats) > 0 {
		activeID = chats[0].ID
	}
	if !c.commit(gen, func() { c.chats = chats }) {
		return nil
	}
	if activeID == "" {
		return nil
	}
	return c.Select(ctx, activeID)
}

// Select activates a conversation and loads its messages in ascending order.
func (c *Chat) Select(ctx context.Context, chatID string) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("use messages")
	}
	c.mu.Lock()
	var found *model.Chat
	for i := range c.chats {
		if c.chats[i].ID == chatID {
			found = &c.chats[i]
			break
		}
	}
	if found == nil || !found.HasParticipant(user.ID) {
		c.mu.Unlock()
		c.notify(NoticeError, "Conversation not found")
		return errordefs.New(errordefs.VH_NOT_FOUND, "conversation not found", "")
	}
	c.threadGen++
	gen := c.threadGen
	c.activeID = chatID
	c.messages = nil
	c.mu.Unlock()

	return c.loadThread(ctx, chatID, gen)
}

func (c *Chat) loadThread(ctx context.Context, chatID string, gen uint64) error {
	msgs, err := c.gw.ListMessages(ctx, chatID)
	if err != nil {
		return c.warn(ctx, err, "Failed to load messages")
	}
	c.mu.Lock()
	if gen == c.threadGen && c.activeID == chatID {
		c.messages = msgs
	}
	c.mu.Unlock()
	return nil
}

// Send posts content to the active conversation, then reloads the thread and
// the conversation list.
func (c *Chat) Send(ctx context.Context, content string) error {
	user, err := c.sess.Require()
	if err != nil {
		return c.needSignIn("send messages")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return errordefs.Validation("message cannot be empty")
	}
	c.mu.Lock()
	if c.activeID == "" {
		c.mu.Unlock()
		return errordefs.Validation("no conversation selected")
	}
	if c.sending {
		c.mu.Unlock()
		return busy()
	}
	c.sending = true
	chatID := c.activeID
	c.mu.Unlock()

	_, err = c.gw.SendMessage(ctx, model.NewMessage{ChatID: chatID, SenderID: user.ID, Content: content})

	c.mu.Lock()
	c.sending = false
	c.threadGen++
	gen := c.threadGen
	c.mu.Unlock()
	if err != nil {
		return c.warn(ctx, err, "Failed to send message")
	}
	if err := c.loadThread(ctx, chatID, gen); err != nil {
		return err
	}
	if chats, err := c.gw.ListChats(ctx, user.ID); err == nil {
		c.mu.Lock()
		c.chats = chats
		c.mu.Unlock()
	}
	return nil
}

// SetSearch filters the conversation list by name.
func (c *Chat) SetSearch(q string) {
	c.mu.Lock()
	c.search = q
	c.mu.Unlock()
}

// FindUser looks up a profile by exact username.
func (c *Chat) FindUser(ctx context.Context, username string) (*model.Profile, error) {
	p, err := c.gw.FindProfileByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			c.notify(NoticeError, "User not found")
			return nil, err
		}
		return nil, c.warn(ctx, err, "Failed to search users")
	}
	return p, nil
}

// SearchUsers suggests profiles whose username starts with prefix.
func (c *Chat) SearchUsers(ctx context.Context, prefix string) ([]model.Profile, error) {
	out, err := c.gw.SearchProfiles(ctx, prefix, 10)
	if err != nil {
		return nil, c.warn(ctx, err, "Failed to search users")
	}
	return out, nil
}

// StartConversation finds username, reuses or creates the direct conversation
// with them, and activates it.
func (c *Chat) StartConversation(ctx context.Context, username string) (*model.Chat, error) {
	user, err := c.sess.Require()
	if err != nil {
		return nil, c.needSignIn("send messages")
	}
	other, err := c.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	chat, err := c.gw.CreateOrGetDirectConversation(ctx, user.ID, other.ID)
	if err != nil {
		return nil, c.warn(ctx, err, "Failed to start conversation")
	}
	if err := c.Load(ctx, chat.ID); err != nil {
		return nil, err
	}
	return chat, nil
}

// Snapshot returns the current state.
func (c *Chat) Snapshot() ChatView {
	notices := c.Notices()
	viewer := viewerID(c.sess)
	c.mu.Lock()
	defer c.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(c.search))
	items := make([]ConversationItem, 0, len(c.chats))
	for _, ch := range c.chats {
		name := present.ChatName(ch, viewer)
		if q != "" && !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		items = append(items, ConversationItem{
			ID:      ch.ID,
			Name:    name,
			Avatar:  present.ChatAvatar(ch, viewer),
			Preview: present.LastMessagePreview(ch.LastMessage),
			IsGroup: ch.IsGroup,
			Active:  ch.ID == c.activeID,
		})
	}
	return ChatView{
		Phase:         c.phase,
		Conversations: items,
		ActiveID:      c.activeID,
		Messages:      append([]model.Message{}, c.messages...),
		Search:        c.search,
		Sending:       c.sending,
		Notices:       notices,
	}
}
