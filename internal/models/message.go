package models

import "time"

// Message is a direct-conversation message. Soft delete keeps the row;
// listings filter on is_deleted.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversationId"`
	SenderID       int       `db:"sender_id" json:"senderId"`
	Content        string    `db:"content" json:"content"`
	Type           string    `db:"type" json:"type"`
	ReplyToID      *int      `db:"reply_to_id" json:"replyToId,omitempty"`
	IsDeleted      bool      `db:"is_deleted" json:"isDeleted"`
	IsEdited       bool      `db:"is_edited" json:"isEdited"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`

	Sender  *UserRef  `db:"-" json:"sender,omitempty"`
	ReplyTo *ReplyRef `db:"-" json:"replyTo,omitempty"`
}

// ReplyRef is the projection of the message being replied to.
type ReplyRef struct {
	ID         int    `db:"id" json:"id"`
	Content    string `db:"content" json:"content"`
	SenderName string `db:"sender_name" json:"senderName"`
}

// Reaction is one (user, message, emoji) row; posting the same triple
// twice removes it.
type Reaction struct {
	ID        int       `db:"id" json:"id"`
	MessageID int       `db:"message_id" json:"messageId"`
	UserID    int       `db:"user_id" json:"userId"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	User *UserRef `db:"-" json:"user,omitempty"`
}

// ReactionGroup aggregates reactions per emoji for one message.
type ReactionGroup struct {
	Emoji      string    `json:"emoji"`
	Count      int       `json:"count"`
	Users      []UserRef `json:"users"`
	HasReacted bool      `json:"hasReacted"`
}

// ReadReceipt marks a message read by a user. Upserts are idempotent.
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"messageId"`
	UserID    int       `db:"user_id" json:"userId"`
	ReadAt    time.Time `db:"read_at" json:"readAt"`
}

// MessagePage is one cursor page, chronological order.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor *int      `json:"nextCursor"`
	HasMore    bool      `json:"hasMore"`
}

const (
	// MaxMessageLength caps message content after trimming.
	MaxMessageLength = 4000
	// MaxRequestMessageLength caps the optional chat-request note.
	MaxRequestMessageLength = 500
)
