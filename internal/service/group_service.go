package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/dto"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/observability"
	"github.com/classdesk/classdesk-api/internal/repository"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	joinCodeLength   = 6
)

// GroupService manages group creation, join-code redemption and the
// role-dependent group views.
type GroupService interface {
	Create(ctx context.Context, principal Principal, payload dto.GroupCreateRequest) (dto.GroupResponse, error)
	Join(ctx context.Context, principal Principal, payload dto.GroupJoinRequest) (dto.MembershipResponse, error)
	ListForTeacher(ctx context.Context, principal Principal) ([]dto.TeacherGroupSummary, error)
	ListForStudent(ctx context.Context, principal Principal) ([]dto.StudentGroupSummary, error)
	GetDetail(ctx context.Context, principal Principal, groupID uint) (dto.GroupDetailResponse, error)
}

type groupService struct {
	groups           repository.GroupRepository
	gate             *AuthorizationGate
	validator        *validator.Validate
	sanitizer        *bluemonday.Policy
	events           *EventPublisher
	cache            *redis.Client
	joinCodeAttempts int
	logger           zerolog.Logger
}

// NewGroupService constructs a GroupService instance. The redis client and
// event publisher may be nil.
func NewGroupService(groups repository.GroupRepository, gate *AuthorizationGate, validate *validator.Validate, events *EventPublisher, cache *redis.Client, joinCodeAttempts int, logger zerolog.Logger) GroupService {
	if joinCodeAttempts <= 0 {
		joinCodeAttempts = 5
	}

	return &groupService{
		groups:           groups,
		gate:             gate,
		validator:        validate,
		sanitizer:        bluemonday.StrictPolicy(),
		events:           events,
		cache:            cache,
		joinCodeAttempts: joinCodeAttempts,
		logger:           logger.With().Str("component", "group_service").Logger(),
	}
}

// Create allocates the group under a fresh join code. The code is drawn
// uniformly from an uppercase alphanumeric alphabet and re-drawn when the
// store reports a uniqueness collision, up to a bounded number of attempts.
func (s *groupService) Create(ctx context.Context, principal Principal, payload dto.GroupCreateRequest) (dto.GroupResponse, error) {
	if err := s.gate.RequireTeacher(principal); err != nil {
		return dto.GroupResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		return dto.GroupResponse{}, fmt.Errorf("%w: group name is empty", ErrInvalidPayload)
	}

	var group models.Group
	for attempt := 0; attempt < s.joinCodeAttempts; attempt++ {
		code, err := generateJoinCode()
		if err != nil {
			return dto.GroupResponse{}, fmt.Errorf("failed to generate join code: %w", err)
		}

		group = models.Group{
			Name:      name,
			JoinCode:  code,
			TeacherID: principal.ID,
		}

		err = s.groups.Create(ctx, &group)
		if err == nil {
			s.logger.Info().Uint("group_id", group.ID).Uint("teacher_id", principal.ID).Msg("group created")
			return dto.NewGroupResponse(group), nil
		}

		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.GroupResponse{}, err
		}

		observability.JoinCodeCollisions().Inc()
		s.logger.Warn().Int("attempt", attempt+1).Msg("join code collision, redrawing")
	}

	return dto.GroupResponse{}, fmt.Errorf("%w: could not allocate a unique join code", ErrConflict)
}

// Join redeems a join code for the calling student. An unknown code is
// NotFound; joining the same group twice is Conflict, guarded by the
// store's composite unique index rather than a read-then-insert check.
func (s *groupService) Join(ctx context.Context, principal Principal, payload dto.GroupJoinRequest) (dto.MembershipResponse, error) {
	if err := s.gate.RequireStudent(principal); err != nil {
		return dto.MembershipResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.MembershipResponse{}, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	group, err := s.groups.GetByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(payload.JoinCode)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MembershipResponse{}, fmt.Errorf("%w: unknown join code", ErrNotFound)
		}

		return dto.MembershipResponse{}, err
	}

	member := models.GroupMember{
		GroupID:   group.ID,
		StudentID: principal.ID,
	}

	if err := s.groups.AddMember(ctx, &member); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.MembershipResponse{}, fmt.Errorf("%w: already a member of this group", ErrConflict)
		}

		return dto.MembershipResponse{}, err
	}

	s.invalidateStudentAssignments(ctx, principal.ID)
	s.events.Publish(ctx, Event{
		Type:      EventGroupJoined,
		GroupID:   group.ID,
		StudentID: principal.ID,
	})

	s.logger.Info().Uint("group_id", group.ID).Uint("student_id", principal.ID).Msg("student joined group")

	return dto.MembershipResponse{
		GroupID:   group.ID,
		GroupName: group.Name,
		JoinedAt:  member.CreatedAt,
	}, nil
}

func (s *groupService) ListForTeacher(ctx context.Context, principal Principal) ([]dto.TeacherGroupSummary, error) {
	if err := s.gate.RequireTeacher(principal); err != nil {
		return nil, err
	}

	rows, err := s.groups.ListByTeacher(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.TeacherGroupSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.TeacherGroupSummary{
			ID:          row.ID,
			Name:        row.Name,
			JoinCode:    row.JoinCode,
			MemberCount: row.MemberCount,
			CreatedAt:   row.CreatedAt,
		})
	}

	return summaries, nil
}

func (s *groupService) ListForStudent(ctx context.Context, principal Principal) ([]dto.StudentGroupSummary, error) {
	if err := s.gate.RequireStudent(principal); err != nil {
		return nil, err
	}

	rows, err := s.groups.ListByStudent(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.StudentGroupSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.StudentGroupSummary{
			ID:          row.ID,
			Name:        row.Name,
			TeacherName: row.TeacherName,
			CreatedAt:   row.CreatedAt,
		})
	}

	return summaries, nil
}

// GetDetail returns the role-dependent view. A principal with no
// relationship to the group gets NotFound rather than Forbidden, so callers
// cannot distinguish hidden groups from missing ones.
func (s *groupService) GetDetail(ctx context.Context, principal Principal, groupID uint) (dto.GroupDetailResponse, error) {
	switch {
	case principal.IsTeacher():
		return s.teacherDetail(ctx, principal, groupID)
	case principal.IsStudent():
		return s.studentDetail(ctx, principal, groupID)
	default:
		return dto.GroupDetailResponse{}, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
	}
}

func (s *groupService) teacherDetail(ctx context.Context, principal Principal, groupID uint) (dto.GroupDetailResponse, error) {
	group, err := s.groups.GetOwned(ctx, groupID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupDetailResponse{}, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
		}

		return dto.GroupDetailResponse{}, err
	}

	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return dto.GroupDetailResponse{}, err
	}

	roster := make([]dto.GroupMemberResponse, 0, len(members))
	for _, member := range members {
		roster = append(roster, dto.GroupMemberResponse{
			ID:       member.ID,
			Username: member.Username,
		})
	}

	count := int64(len(roster))

	return dto.GroupDetailResponse{
		ID:          group.ID,
		Name:        group.Name,
		JoinCode:    group.JoinCode,
		TeacherName: group.Teacher.Username,
		MemberCount: &count,
		Members:     roster,
		CreatedAt:   group.CreatedAt,
	}, nil
}

func (s *groupService) studentDetail(ctx context.Context, principal Principal, groupID uint) (dto.GroupDetailResponse, error) {
	row, err := s.groups.GetForStudent(ctx, groupID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupDetailResponse{}, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
		}

		return dto.GroupDetailResponse{}, err
	}

	return dto.GroupDetailResponse{
		ID:          row.ID,
		Name:        row.Name,
		TeacherName: row.TeacherName,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (s *groupService) invalidateStudentAssignments(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}

	key := studentAssignmentsCacheKey(studentID)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate assignment cache")
	}
}

func generateJoinCode() (string, error) {
	code := make([]byte, joinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))

	for i := range code {
		index, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[index.Int64()]
	}

	return string(code), nil
}
