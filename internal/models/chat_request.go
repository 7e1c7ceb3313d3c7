package models

import "time"

// Chat request lifecycle states.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// RequestQuota is the number of requests a sender may issue to the same
// receiver within a trailing 365-day window.
const RequestQuota = 3

// ChatRequest is a directed contact proposal from sender to receiver.
type ChatRequest struct {
	ID          int        `db:"id" json:"id"`
	SenderID    int        `db:"sender_id" json:"senderId"`
	ReceiverID  int        `db:"receiver_id" json:"receiverId"`
	Status      string     `db:"status" json:"status"`
	Message     *string    `db:"message" json:"message,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	RespondedAt *time.Time `db:"responded_at" json:"respondedAt,omitempty"`

	Sender   *UserRef `db:"-" json:"sender,omitempty"`
	Receiver *UserRef `db:"-" json:"receiver,omitempty"`
}
