package dto

import (
	"time"

	"github.com/classdesk/classdesk-api/internal/models"
)

// GroupCreateRequest is the payload for creating a group.
type GroupCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// GroupJoinRequest is the payload for redeeming a join code.
type GroupJoinRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6,alphanum"`
}

// GroupResponse is returned after group creation.
type GroupResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"join_code"`
	TeacherID uint      `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TeacherGroupSummary lists a group from the owning teacher's perspective.
type TeacherGroupSummary struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	JoinCode    string    `json:"join_code"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudentGroupSummary lists a group from a member's perspective. The join
// code is withheld from students.
type StudentGroupSummary struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	TeacherName string    `json:"teacher_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupMemberResponse identifies a student on a group roster.
type GroupMemberResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// GroupDetailResponse is the role-dependent detail view. Members and
// MemberCount are present only for the owning teacher; students see the
// teacher's name and no roster.
type GroupDetailResponse struct {
	ID          uint                  `json:"id"`
	Name        string                `json:"name"`
	JoinCode    string                `json:"join_code,omitempty"`
	TeacherName string                `json:"teacher_name"`
	MemberCount *int64                `json:"member_count,omitempty"`
	Members     []GroupMemberResponse `json:"members,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// MembershipResponse confirms a successful join.
type MembershipResponse struct {
	GroupID   uint      `json:"group_id"`
	GroupName string    `json:"group_name"`
	JoinedAt  time.Time `json:"joined_at"`
}

// NewGroupResponse converts a Group model into a DTO.
func NewGroupResponse(model models.Group) GroupResponse {
	return GroupResponse{
		ID:        model.ID,
		Name:      model.Name,
		JoinCode:  model.JoinCode,
		TeacherID: model.TeacherID,
		CreatedAt: model.CreatedAt,
	}
}
