package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/repository"
)

// Principal is the authenticated caller as asserted by the identity layer.
// The role is trusted; ownership and membership claims never are.
type Principal struct {
	ID   uint
	Role string
}

// IsTeacher reports whether the principal carries the teacher role.
func (p Principal) IsTeacher() bool {
	return p.Role == models.RoleTeacher
}

// IsStudent reports whether the principal carries the student role.
func (p Principal) IsStudent() bool {
	return p.Role == models.RoleStudent
}

// AuthorizationGate decides whether a principal may act on a resource. Role
// gates are pure; ownership and membership are re-verified against the
// store on every call rather than trusting client-supplied identifiers.
// Every denial carries a distinguishable reason.
type AuthorizationGate struct {
	groups      repository.GroupRepository
	assignments repository.AssignmentRepository
	logger      zerolog.Logger
}

// NewAuthorizationGate constructs the gate over the owning repositories.
func NewAuthorizationGate(groups repository.GroupRepository, assignments repository.AssignmentRepository, logger zerolog.Logger) *AuthorizationGate {
	return &AuthorizationGate{
		groups:      groups,
		assignments: assignments,
		logger:      logger.With().Str("component", "authz_gate").Logger(),
	}
}

// RequireTeacher denies any principal not carrying the teacher role.
func (g *AuthorizationGate) RequireTeacher(principal Principal) error {
	if !principal.IsTeacher() {
		return denied(DenyReasonRole)
	}

	return nil
}

// RequireStudent denies any principal not carrying the student role.
func (g *AuthorizationGate) RequireStudent(principal Principal) error {
	if !principal.IsStudent() {
		return denied(DenyReasonRole)
	}

	return nil
}

// RequireGroupOwner verifies the principal is a teacher owning the group and
// returns it. The ownership join runs against the store; a group owned by
// someone else is indistinguishable from a missing one here.
func (g *AuthorizationGate) RequireGroupOwner(ctx context.Context, principal Principal, groupID uint) (models.Group, error) {
	if err := g.RequireTeacher(principal); err != nil {
		return models.Group{}, err
	}

	group, err := g.groups.GetOwned(ctx, groupID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			g.logger.Debug().Uint("group_id", groupID).Uint("teacher_id", principal.ID).Msg("ownership check failed")
			return models.Group{}, denied(DenyReasonNotOwner)
		}

		return models.Group{}, err
	}

	return group, nil
}

// RequireAssignmentMember verifies the principal is a student holding a
// membership in the assignment's group, and returns the assignment.
func (g *AuthorizationGate) RequireAssignmentMember(ctx context.Context, principal Principal, assignmentID uint) (models.Assignment, error) {
	if err := g.RequireStudent(principal); err != nil {
		return models.Assignment{}, err
	}

	assignment, err := g.assignments.GetForStudent(ctx, assignmentID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			g.logger.Debug().Uint("assignment_id", assignmentID).Uint("student_id", principal.ID).Msg("membership check failed")
			return models.Assignment{}, denied(DenyReasonNotMember)
		}

		return models.Assignment{}, err
	}

	return assignment, nil
}
