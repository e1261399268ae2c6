package gateway

import (
	"context"
	stderrors "errors"
	"strings"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/schema"
	"github.com/RegistryAccord/vidhub-go/internal/storage"
)

// ListChats returns the user's conversations, most recently active first.
func (g *Gateway) ListChats(ctx context.Context, userID string) (out []model.Chat, err error) {
	ctx, done := g.begin(ctx, "list_chats")
	defer done(&err)
	return g.store.ListChats(ctx, userID)
}

// GetChat fetches one conversation with its participants.
func (g *Gateway) GetChat(ctx context.Context, id string) (c *model.Chat, err error) {
	ctx, done := g.begin(ctx, "get_chat")
	defer done(&err)
	return g.store.GetChat(ctx, id)
}

// ListMessages returns a chat's messages in ascending time order.
func (g *Gateway) ListMessages(ctx context.Context, chatID string) (out []model.Message, err error) {
	ctx, done := g.begin(ctx, "list_messages")
	defer done(&err)
	return g.store.ListMessages(ctx, chatID)
}

// SendMessage stores a message. Text is trimmed; a message needs text or media.
func (g *Gateway) SendMessage(ctx context.Context, nm model.NewMessage) (m *model.Message, err error) {
	ctx, done := g.begin(ctx, "send_message")
	defer done(&err)

	nm.Content = strings.TrimSpace(nm.Content)
	if nm.Content == "" && nm.MediaURL == "" {
		return nil, errordefs.Validation("message cannot be empty")
	}
	if err := g.validator.Validate(schema.MessageSend, nm); err != nil {
		return nil, err
	}
	m, err = g.store.CreateMessage(ctx, nm)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, "message", g.events.PublishMessage(ctx, *m))
	return m, nil
}

// CreateOrGetDirectConversation returns the two-party chat between userID and
// otherID, creating it when none exists.
func (g *Gateway) CreateOrGetDirectConversation(ctx context.Context, userID, otherID string) (c *model.Chat, err error) {
	ctx, done := g.begin(ctx, "create_or_get_direct_chat")
	defer done(&err)

	if userID == otherID {
		return nil, errordefs.Validation("you cannot start a conversation with yourself")
	}
	c, err = g.store.FindDirectChat(ctx, userID, otherID)
	if err == nil {
		return c, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return g.store.CreateChat(ctx, model.NewChat{CreatorID: userID, ParticipantIDs: []string{otherID}})
}
