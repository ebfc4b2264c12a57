package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/models"
)

// TeacherGroupRow is a group listed from its owner's perspective.
type TeacherGroupRow struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	JoinCode    string    `json:"join_code"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudentGroupRow is a group listed from a member's perspective.
type StudentGroupRow struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	TeacherName string    `json:"teacher_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupMemberRow identifies a student on a group roster.
type GroupMemberRow struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// GroupRepository defines persistence operations for groups and memberships.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByJoinCode(ctx context.Context, joinCode string) (models.Group, error)
	GetOwned(ctx context.Context, groupID, teacherID uint) (models.Group, error)
	GetForStudent(ctx context.Context, groupID, studentID uint) (StudentGroupRow, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]TeacherGroupRow, error)
	ListByStudent(ctx context.Context, studentID uint) ([]StudentGroupRow, error)
	ListMembers(ctx context.Context, groupID uint) ([]GroupMemberRow, error)
	AddMember(ctx context.Context, member *models.GroupMember) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository instantiates a GORM-backed repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) GetByJoinCode(ctx context.Context, joinCode string) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).
		Where("join_code = ?", joinCode).
		First(&group).Error; err != nil {
		return models.Group{}, err
	}

	return group, nil
}

func (r *groupRepository) GetOwned(ctx context.Context, groupID, teacherID uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("id = ?", groupID).
		Where("teacher_id = ?", teacherID).
		First(&group).Error; err != nil {
		return models.Group{}, err
	}

	return group, nil
}

func (r *groupRepository) GetForStudent(ctx context.Context, groupID, studentID uint) (StudentGroupRow, error) {
	var row StudentGroupRow
	err := r.db.WithContext(ctx).
		Table("groups").
		Select("groups.id, groups.name, users.username AS teacher_name, groups.created_at").
		Joins("JOIN users ON users.id = groups.teacher_id").
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("groups.id = ?", groupID).
		Where("group_members.student_id = ?", studentID).
		Take(&row).Error
	if err != nil {
		return StudentGroupRow{}, err
	}

	return row, nil
}

func (r *groupRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]TeacherGroupRow, error) {
	var rows []TeacherGroupRow
	err := r.db.WithContext(ctx).
		Table("groups").
		Select("groups.id, groups.name, groups.join_code, groups.created_at, COUNT(group_members.id) AS member_count").
		Joins("LEFT JOIN group_members ON group_members.group_id = groups.id").
		Where("groups.teacher_id = ?", teacherID).
		Group("groups.id").
		Order("groups.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *groupRepository) ListByStudent(ctx context.Context, studentID uint) ([]StudentGroupRow, error) {
	var rows []StudentGroupRow
	err := r.db.WithContext(ctx).
		Table("groups").
		Select("groups.id, groups.name, users.username AS teacher_name, groups.created_at").
		Joins("JOIN users ON users.id = groups.teacher_id").
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.student_id = ?", studentID).
		Order("groups.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *groupRepository) ListMembers(ctx context.Context, groupID uint) ([]GroupMemberRow, error) {
	var rows []GroupMemberRow
	err := r.db.WithContext(ctx).
		Table("group_members").
		Select("users.id, users.username").
		Joins("JOIN users ON users.id = group_members.student_id").
		Where("group_members.group_id = ?", groupID).
		Order("users.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *groupRepository) AddMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}
