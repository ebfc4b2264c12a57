package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/models"
)

// TeacherAssignmentRow annotates an assignment with its submission count.
type TeacherAssignmentRow struct {
	ID              uint      `json:"id"`
	GroupID         uint      `json:"group_id"`
	GroupName       string    `json:"group_name"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Deadline        time.Time `json:"deadline"`
	CreatedAt       time.Time `json:"created_at"`
	SubmissionCount int64     `json:"submission_count"`
}

// StudentAssignmentRow annotates an assignment with the listing student's
// own submission count (0 or 1 given the uniqueness constraint).
type StudentAssignmentRow struct {
	ID              uint      `json:"id"`
	GroupID         uint      `json:"group_id"`
	GroupName       string    `json:"group_name"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Deadline        time.Time `json:"deadline"`
	CreatedAt       time.Time `json:"created_at"`
	SubmissionCount int64     `json:"submission_count"`
}

// AssignmentRepository defines persistence operations for assignments.
// The scoped getters enforce ownership and membership at query level: a
// caller without the required relationship sees gorm.ErrRecordNotFound,
// never another tenant's data.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetOwned(ctx context.Context, assignmentID, teacherID uint) (models.Assignment, error)
	GetForStudent(ctx context.Context, assignmentID, studentID uint) (models.Assignment, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]TeacherAssignmentRow, error)
	ListByStudent(ctx context.Context, studentID uint) ([]StudentAssignmentRow, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) GetOwned(ctx context.Context, assignmentID, teacherID uint) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Group").
		Joins("JOIN groups ON groups.id = assignments.group_id").
		Where("assignments.id = ?", assignmentID).
		Where("groups.teacher_id = ?", teacherID).
		First(&assignment).Error
	if err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) GetForStudent(ctx context.Context, assignmentID, studentID uint) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Group").
		Joins("JOIN groups ON groups.id = assignments.group_id").
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("assignments.id = ?", assignmentID).
		Where("group_members.student_id = ?", studentID).
		First(&assignment).Error
	if err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]TeacherAssignmentRow, error) {
	var rows []TeacherAssignmentRow
	err := r.db.WithContext(ctx).
		Table("assignments").
		Select(`assignments.id, assignments.group_id, groups.name AS group_name,
			assignments.title, assignments.description, assignments.deadline, assignments.created_at,
			(SELECT COUNT(*) FROM submissions WHERE submissions.assignment_id = assignments.id) AS submission_count`).
		Joins("JOIN groups ON groups.id = assignments.group_id").
		Where("groups.teacher_id = ?", teacherID).
		Order("assignments.deadline DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *assignmentRepository) ListByStudent(ctx context.Context, studentID uint) ([]StudentAssignmentRow, error) {
	var rows []StudentAssignmentRow
	err := r.db.WithContext(ctx).
		Table("assignments").
		Select(`assignments.id, assignments.group_id, groups.name AS group_name,
			assignments.title, assignments.description, assignments.deadline, assignments.created_at,
			(SELECT COUNT(*) FROM submissions WHERE submissions.assignment_id = assignments.id AND submissions.student_id = ?) AS submission_count`, studentID).
		Joins("JOIN groups ON groups.id = assignments.group_id").
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.student_id = ?", studentID).
		Order("assignments.deadline DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
