package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Call statuses.
const (
	CallPending   = "pending"
	CallActive    = "active"
	CallMissed    = "missed"
	CallCancelled = "cancelled"
	CallRejected  = "rejected"
	CallCompleted = "completed"
)

// PendingCallWindow is how long a pending call stays ringable.
const PendingCallWindow = 60 * time.Second

// Call is a signaling record between initiator and receiver. The offer,
// answer, and ICE candidates are opaque to the server.
type Call struct {
	ID          int        `db:"id" json:"id"`
	InitiatorID int        `db:"initiator_id" json:"initiatorId"`
	ReceiverID  int        `db:"receiver_id" json:"receiverId"`
	Type        string     `db:"type" json:"type"`
	Status      string     `db:"status" json:"status"`
	Metadata    CallMeta   `db:"metadata" json:"metadata"`
	StartedAt   time.Time  `db:"started_at" json:"startedAt"`
	EndedAt     *time.Time `db:"ended_at" json:"endedAt,omitempty"`

	Initiator *UserRef `db:"-" json:"initiator,omitempty"`
	Receiver  *UserRef `db:"-" json:"receiver,omitempty"`
}

// CallMeta is the JSONB metadata column.
type CallMeta struct {
	Offer         json.RawMessage `json:"offer,omitempty"`
	Answer        json.RawMessage `json:"answer,omitempty"`
	IceCandidates CallCandidates  `json:"iceCandidates"`
}

type CallCandidates struct {
	Initiator []json.RawMessage `json:"initiator"`
	Receiver  []json.RawMessage `json:"receiver"`
}

// Value/Scan implement JSONB round-tripping for sqlx.

func (m CallMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *CallMeta) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = CallMeta{}
		return nil
	default:
		return fmt.Errorf("unsupported call metadata type %T", src)
	}
}

// IsParticipant reports whether the user is either side of the call.
func (c Call) IsParticipant(userID int) bool {
	return c.InitiatorID == userID || c.ReceiverID == userID
}
