package dto

import (
	"time"

	"github.com/classdesk/classdesk-api/internal/models"
)

// AssignmentCreateRequest is the payload for publishing an assignment to a
// group. The deadline is an RFC3339 timestamp; past deadlines are accepted.
type AssignmentCreateRequest struct {
	GroupID     uint   `json:"group_id" validate:"required,gt=0"`
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	Deadline    string `json:"deadline" validate:"required"`
}

// AssignmentResponse is the base assignment view.
type AssignmentResponse struct {
	ID          uint      `json:"id"`
	GroupID     uint      `json:"group_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
}

// TeacherAssignmentSummary annotates an assignment with its received
// submission count for the owning teacher's list view.
type TeacherAssignmentSummary struct {
	AssignmentResponse
	GroupName       string `json:"group_name"`
	SubmissionCount int64  `json:"submission_count"`
}

// StudentAssignmentSummary annotates an assignment with whether the listing
// student has already submitted.
type StudentAssignmentSummary struct {
	AssignmentResponse
	GroupName    string `json:"group_name"`
	HasSubmitted bool   `json:"has_submitted"`
}

// AssignmentDetailResponse is the role-dependent detail view: teachers see
// every submission, students only their own (or null).
type AssignmentDetailResponse struct {
	AssignmentResponse
	GroupName   string               `json:"group_name"`
	Submissions []SubmissionResponse `json:"submissions,omitempty"`
	Submission  *SubmissionResponse  `json:"submission,omitempty"`
}

// NewAssignmentResponse converts an Assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          model.ID,
		GroupID:     model.GroupID,
		Title:       model.Title,
		Description: model.Description,
		Deadline:    model.Deadline,
		CreatedAt:   model.CreatedAt,
	}
}
