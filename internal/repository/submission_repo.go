package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classdesk/classdesk-api/internal/models"
)

// SubmissionWithUserRow joins a submission with its submitter's username for
// teacher-facing listings.
type SubmissionWithUserRow struct {
	ID             uint           `json:"id"`
	AssignmentID   uint           `json:"assignment_id"`
	StudentID      uint           `json:"student_id"`
	Username       string         `json:"username"`
	SubmissionType string         `json:"submission_type"`
	Content        string         `json:"content"`
	Metadata       datatypes.JSON `json:"metadata"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	Upsert(ctx context.Context, submission *models.Submission) error
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]SubmissionWithUserRow, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Upsert inserts the submission, or replaces type, content, metadata and
// timestamp of the existing row for the same (assignment, student) pair.
// The conflict target is the store's composite unique index, so two racing
// submits converge on a single row without a read-check window.
func (r *submissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"submission_type", "content", "metadata", "submitted_at",
			}),
		}).
		Create(submission).Error
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]SubmissionWithUserRow, error) {
	var rows []SubmissionWithUserRow
	err := r.db.WithContext(ctx).
		Table("submissions").
		Select(`submissions.id, submissions.assignment_id, submissions.student_id, users.username,
			submissions.submission_type, submissions.content, submissions.metadata, submissions.submitted_at`).
		Joins("JOIN users ON users.id = submissions.student_id").
		Where("submissions.assignment_id = ?", assignmentID).
		Order("submissions.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
