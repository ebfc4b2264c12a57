package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission types accepted from students.
const (
	SubmissionTypeFile = "file"
	SubmissionTypeLink = "link"
)

// Submission is a student's answer to an assignment. At most one row exists
// per (assignment, student); resubmitting replaces content, type and
// timestamp in place. For file submissions Content holds the blob key and
// Metadata carries the decoded payload's mime type, size and checksum. For
// link submissions Content holds the URL verbatim.
type Submission struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	AssignmentID   uint           `gorm:"not null;uniqueIndex:idx_assignment_student" json:"assignment_id"`
	StudentID      uint           `gorm:"not null;uniqueIndex:idx_assignment_student" json:"student_id"`
	SubmissionType string         `gorm:"size:16;not null" json:"submission_type"`
	Content        string         `gorm:"size:1024;not null" json:"content"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	SubmittedAt    time.Time      `gorm:"not null" json:"submitted_at"`

	Assignment Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student    User       `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsFile reports whether Content references a stored blob.
func (s Submission) IsFile() bool {
	return s.SubmissionType == SubmissionTypeFile
}
