package models

import "time"

// Group member roles. "owner" is canonical; there is exactly one per group.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group is a named multi-member room. Private groups are invisible to
// non-members; public ones are readable by anyone.
type Group struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Image       *string   `db:"image" json:"image,omitempty"`
	IsPrivate   bool      `db:"is_private" json:"isPrivate"`
	MaxMembers  int       `db:"max_members" json:"maxMembers"`
	CreatorID   int       `db:"creator_id" json:"creatorId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`

	MemberCount  int     `db:"member_count" json:"memberCount"`
	MessageCount int     `db:"message_count" json:"messageCount"`
	CallerRole   *string `db:"caller_role" json:"callerRole,omitempty"`
}

// GroupMember is one membership row.
type GroupMember struct {
	GroupID    int        `db:"group_id" json:"groupId"`
	UserID     int        `db:"user_id" json:"userId"`
	Role       string     `db:"role" json:"role"`
	MutedUntil *time.Time `db:"muted_until" json:"mutedUntil,omitempty"`
	Nickname   *string    `db:"nickname" json:"nickname,omitempty"`
	JoinedAt   time.Time  `db:"joined_at" json:"joinedAt"`

	User *UserRef `db:"-" json:"user,omitempty"`
}

// IsMuted reports whether the membership has an active mute.
func (m GroupMember) IsMuted(now time.Time) bool {
	return m.MutedUntil != nil && m.MutedUntil.After(now)
}

// CanModerate reports whether the role may kick or mute members.
func CanModerate(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}

// GroupMessage mirrors Message for group rooms.
type GroupMessage struct {
	ID        int       `db:"id" json:"id"`
	GroupID   int       `db:"group_id" json:"groupId"`
	SenderID  int       `db:"sender_id" json:"senderId"`
	Content   string    `db:"content" json:"content"`
	Type      string    `db:"type" json:"type"`
	ReplyToID *int      `db:"reply_to_id" json:"replyToId,omitempty"`
	IsDeleted bool      `db:"is_deleted" json:"isDeleted"`
	IsEdited  bool      `db:"is_edited" json:"isEdited"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	Sender *UserRef `db:"-" json:"sender,omitempty"`
}
