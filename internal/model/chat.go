package model

import "time"

// Chat is a direct or group conversation.
type Chat struct {
	ID             string            `json:"id" db:"id"`
	IsGroup        bool              `json:"isGroup" db:"is_group"`
	GroupName      string            `json:"groupName,omitempty" db:"group_name"`
	GroupAvatarURL string            `json:"groupAvatarUrl,omitempty" db:"group_avatar_url"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
	Participants   []ChatParticipant `json:"participants"`
	LastMessage    *Message          `json:"lastMessage,omitempty"`
}

// HasParticipant reports whether userID takes part in the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ChatParticipant is a member of a chat.
type ChatParticipant struct {
	ID       string          `json:"id" db:"id"`
	ChatID   string          `json:"chatId" db:"chat_id"`
	UserID   string          `json:"userId" db:"user_id"`
	IsAdmin  bool            `json:"isAdmin" db:"is_admin"`
	JoinedAt time.Time       `json:"joinedAt" db:"joined_at"`
	Profile  *ProfileSummary `json:"profile,omitempty"`
}

// NewChat is the insert payload for a chat and its participants.
type NewChat struct {
	IsGroup        bool     `json:"isGroup"`
	GroupName      string   `json:"groupName,omitempty"`
	CreatorID      string   `json:"creatorId"` // Becomes admin
	ParticipantIDs []string `json:"participantIds"`
}

// Message is one entry in a chat thread. Either Content or MediaURL is set.
type Message struct {
	ID           string          `json:"id" db:"id"`
	ChatID       string          `json:"chatId" db:"chat_id"`
	SenderID     string          `json:"senderId" db:"sender_id"`
	Content      string          `json:"content,omitempty" db:"content"`
	MediaURL     string          `json:"mediaUrl,omitempty" db:"media_url"`
	MediaType    string          `json:"mediaType,omitempty" db:"media_type"`
	IsRead       bool            `json:"isRead" db:"is_read"`
	IsDeleted    bool            `json:"isDeleted" db:"is_deleted"`
	ReplyTo      string          `json:"replyTo,omitempty" db:"reply_to"`
	IsForwarded  bool            `json:"isForwarded" db:"is_forwarded"`
	IsStarred    bool            `json:"isStarred" db:"is_starred"`
	DisappearsAt *time.Time      `json:"disappearsAt,omitempty" db:"disappears_at"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	Sender       *ProfileSummary `json:"sender,omitempty"`
}

// NewMessage is the insert payload for a message row.
type NewMessage struct {
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
}
