package models

import "time"

// User is the identity record. Nullable columns map to pointers so the
// JSON output omits them instead of rendering sql.Null wrappers.
type User struct {
	ID           int        `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	RealName     *string    `db:"real_name" json:"realName,omitempty"`
	Image        *string    `db:"image" json:"image,omitempty"`
	Bio          *string    `db:"bio" json:"bio,omitempty"`
	Hobbies      *string    `db:"hobbies" json:"hobbies,omitempty"`
	Location     *string    `db:"location" json:"location,omitempty"`
	Website      *string    `db:"website" json:"website,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Gender       *string    `db:"gender" json:"gender,omitempty"`
	Occupation   *string    `db:"occupation" json:"occupation,omitempty"`
	PasswordHash *string    `db:"password_hash" json:"-"`
	Status       string     `db:"status" json:"status"`
	Role         string     `db:"role" json:"role"`
	LastSeen     *time.Time `db:"last_seen" json:"lastSeen,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// UserRef is the projection attached to messages, requests, and calls.
type UserRef struct {
	ID    int     `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Image *string `db:"image" json:"image,omitempty"`
}

// Presence statuses accepted by the profile status endpoint.
var ValidStatuses = []string{"online", "away", "busy", "offline", "invisible"}

func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}
