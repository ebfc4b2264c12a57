package models

import "time"

// Group is a class group owned by exactly one teacher. The join code is a
// short random token handed out by the teacher; whoever presents it becomes
// a member.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	JoinCode  string    `gorm:"size:16;uniqueIndex;not null" json:"join_code"`
	TeacherID uint      `gorm:"not null;index" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Teacher User          `gorm:"foreignKey:TeacherID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Members []GroupMember `json:"-"`
}

// IsOwnedBy reports whether the given teacher owns this group.
func (g Group) IsOwnedBy(teacherID uint) bool {
	return g.TeacherID == teacherID
}

// GroupMember records a student's membership in a group. A student joins a
// group at most once; the composite unique index is the source of truth.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_group_student" json:"group_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_group_student" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`

	Group   Group `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student User  `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName keeps the historical table name used by the relational schema.
func (GroupMember) TableName() string {
	return "group_members"
}
