package dto

import (
	"encoding/json"
	"time"

	"github.com/classdesk/classdesk-api/internal/models"
)

// SubmissionCreateRequest is the payload for submitting (or resubmitting)
// work for an assignment. For file submissions Content must be a base64
// data URI; for links it is stored verbatim.
type SubmissionCreateRequest struct {
	AssignmentID   uint   `json:"assignment_id" validate:"required,gt=0"`
	SubmissionType string `json:"submission_type" validate:"required,oneof=file link"`
	Content        string `json:"content" validate:"required"`
}

// SubmissionMetadata describes a stored file payload.
type SubmissionMetadata struct {
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
// Username is populated only in teacher-facing listings; ContentURL is the
// resolved location for file submissions.
type SubmissionResponse struct {
	ID             uint                `json:"id"`
	AssignmentID   uint                `json:"assignment_id"`
	StudentID      uint                `json:"student_id"`
	SubmissionType string              `json:"submission_type"`
	Content        string              `json:"content"`
	ContentURL     string              `json:"content_url,omitempty"`
	Username       string              `json:"username,omitempty"`
	Metadata       *SubmissionMetadata `json:"metadata,omitempty"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		AssignmentID:   model.AssignmentID,
		StudentID:      model.StudentID,
		SubmissionType: model.SubmissionType,
		Content:        model.Content,
		SubmittedAt:    model.SubmittedAt,
	}

	if len(model.Metadata) > 0 {
		var meta SubmissionMetadata
		if err := json.Unmarshal(model.Metadata, &meta); err == nil {
			response.Metadata = &meta
		}
	}

	return response
}
