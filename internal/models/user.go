package models

import "time"

// Role values accepted at registration.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User is an account that can authenticate against the portal. The password
// column always holds a bcrypt hash, never the plaintext.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTeacher reports whether the account carries the teacher role.
func (u User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// IsStudent reports whether the account carries the student role.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
