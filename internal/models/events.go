package models

// Event types broadcast over websocket rooms.
const (
	EventMessage        = "message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventReaction       = "reaction"
)

// ConversationEvent is broadcast to a direct-conversation room.
type ConversationEvent struct {
	Type      string    `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	MessageID int       `json:"messageId,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
	Removed   bool      `json:"removed,omitempty"`
}

// GroupEvent is broadcast to a group room.
type GroupEvent struct {
	Type      string        `json:"type"`
	Message   *GroupMessage `json:"message,omitempty"`
	MessageID int           `json:"messageId,omitempty"`
	Reaction  *Reaction     `json:"reaction,omitempty"`
	Emoji     string        `json:"emoji,omitempty"`
	Removed   bool          `json:"removed,omitempty"`
}
