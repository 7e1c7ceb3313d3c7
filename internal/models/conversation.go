package models

import "time"

// Conversation is a direct (two-participant) or group-backed thread.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"isGroup"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ConversationUser is the per-participant overlay: membership plus the
// mute/archive/pin flags and the cleared_at watermark that hides older
// messages for that participant only.
type ConversationUser struct {
	ConversationID int        `db:"conversation_id" json:"conversationId"`
	UserID         int        `db:"user_id" json:"userId"`
	Role           string     `db:"role" json:"role"`
	Muted          bool       `db:"muted" json:"muted"`
	Archived       bool       `db:"archived" json:"archived"`
	Pinned         bool       `db:"pinned" json:"pinned"`
	ClearedAt      *time.Time `db:"cleared_at" json:"clearedAt,omitempty"`
	JoinedAt       time.Time  `db:"joined_at" json:"joinedAt"`
}

// ConversationParticipant pairs the overlay row with the user projection.
type ConversationParticipant struct {
	UserID int           `json:"userId"`
	Role   string        `json:"role"`
	User   UserStatusRef `json:"user"`
}

// UserStatusRef is UserRef plus presence, used in conversation listings.
type UserStatusRef struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Image  *string `json:"image,omitempty"`
	Status string  `json:"status"`
}

// ConversationSummary is the listing shape: participants plus the most
// recent message preview.
type ConversationSummary struct {
	Conversation
	Participants []ConversationParticipant `json:"users"`
	LastMessage  *MessagePreview           `json:"lastMessage,omitempty"`
}

// MessagePreview is the truncated latest-message projection.
type MessagePreview struct {
	ID        int       `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	Type      string    `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
