package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/dto"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/repository"
	"github.com/classdesk/classdesk-api/internal/storage"
)

// AssignmentService publishes assignments to owned groups and serves the
// role-dependent listings and detail views.
type AssignmentService interface {
	Create(ctx context.Context, principal Principal, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	ListForTeacher(ctx context.Context, principal Principal) ([]dto.TeacherAssignmentSummary, error)
	ListForStudent(ctx context.Context, principal Principal) ([]dto.StudentAssignmentSummary, error)
	GetDetail(ctx context.Context, principal Principal, assignmentID uint) (dto.AssignmentDetailResponse, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	gate        *AuthorizationGate
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	blobs       storage.BlobStore
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewAssignmentService constructs an AssignmentService instance. The redis
// client may be nil, which disables the student listing cache.
func NewAssignmentService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, gate *AuthorizationGate, validate *validator.Validate, blobs storage.BlobStore, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) AssignmentService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &assignmentService{
		assignments: assignments,
		submissions: submissions,
		gate:        gate,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		blobs:       blobs,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
	}
}

// Create publishes an assignment to a group the principal owns. The
// deadline is parsed but deliberately not compared against the current
// time; late deadlines are accepted as-is.
func (s *assignmentService) Create(ctx context.Context, principal Principal, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	group, err := s.gate.RequireGroupOwner(ctx, principal, payload.GroupID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	deadline, err := time.Parse(time.RFC3339, payload.Deadline)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: invalid deadline: %s", ErrInvalidPayload, err)
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if title == "" {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: title is empty", ErrInvalidPayload)
	}

	assignment := models.Assignment{
		GroupID:     group.ID,
		Title:       title,
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Deadline:    deadline,
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("group_id", group.ID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) ListForTeacher(ctx context.Context, principal Principal) ([]dto.TeacherAssignmentSummary, error) {
	if err := s.gate.RequireTeacher(principal); err != nil {
		return nil, err
	}

	rows, err := s.assignments.ListByTeacher(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.TeacherAssignmentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.TeacherAssignmentSummary{
			AssignmentResponse: dto.AssignmentResponse{
				ID:          row.ID,
				GroupID:     row.GroupID,
				Title:       row.Title,
				Description: row.Description,
				Deadline:    row.Deadline,
				CreatedAt:   row.CreatedAt,
			},
			GroupName:       row.GroupName,
			SubmissionCount: row.SubmissionCount,
		})
	}

	return summaries, nil
}

// ListForStudent serves the student's annotated assignment list, cached
// under a short TTL. The cache is invalidated when the student joins a
// group or submits work.
func (s *assignmentService) ListForStudent(ctx context.Context, principal Principal) ([]dto.StudentAssignmentSummary, error) {
	if err := s.gate.RequireStudent(principal); err != nil {
		return nil, err
	}

	cacheKey := studentAssignmentsCacheKey(principal.ID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var summaries []dto.StudentAssignmentSummary
			if unmarshalErr := json.Unmarshal([]byte(cached), &summaries); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", principal.ID).Msg("assignment list cache hit")
				return summaries, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read assignment cache")
		}
	}

	rows, err := s.assignments.ListByStudent(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.StudentAssignmentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.StudentAssignmentSummary{
			AssignmentResponse: dto.AssignmentResponse{
				ID:          row.ID,
				GroupID:     row.GroupID,
				Title:       row.Title,
				Description: row.Description,
				Deadline:    row.Deadline,
				CreatedAt:   row.CreatedAt,
			},
			GroupName:    row.GroupName,
			HasSubmitted: row.SubmissionCount > 0,
		})
	}

	if s.cache != nil {
		if payload, err := json.Marshal(summaries); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store assignment cache")
			}
		}
	}

	return summaries, nil
}

// GetDetail returns the role-dependent detail view. Principals without an
// ownership or membership relationship receive NotFound, never another
// tenant's data and never Forbidden.
func (s *assignmentService) GetDetail(ctx context.Context, principal Principal, assignmentID uint) (dto.AssignmentDetailResponse, error) {
	switch {
	case principal.IsTeacher():
		return s.teacherDetail(ctx, principal, assignmentID)
	case principal.IsStudent():
		return s.studentDetail(ctx, principal, assignmentID)
	default:
		return dto.AssignmentDetailResponse{}, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
	}
}

func (s *assignmentService) teacherDetail(ctx context.Context, principal Principal, assignmentID uint) (dto.AssignmentDetailResponse, error) {
	assignment, err := s.assignments.GetOwned(ctx, assignmentID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentDetailResponse{}, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}

		return dto.AssignmentDetailResponse{}, err
	}

	rows, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentDetailResponse{}, err
	}

	detail := dto.AssignmentDetailResponse{
		AssignmentResponse: dto.NewAssignmentResponse(assignment),
		GroupName:          assignment.Group.Name,
		Submissions:        make([]dto.SubmissionResponse, 0, len(rows)),
	}

	for _, row := range rows {
		submission := dto.NewSubmissionResponse(models.Submission{
			ID:             row.ID,
			AssignmentID:   row.AssignmentID,
			StudentID:      row.StudentID,
			SubmissionType: row.SubmissionType,
			Content:        row.Content,
			Metadata:       row.Metadata,
			SubmittedAt:    row.SubmittedAt,
		})
		submission.Username = row.Username
		resolveSubmissionContent(&submission, s.blobs)
		detail.Submissions = append(detail.Submissions, submission)
	}

	return detail, nil
}

func (s *assignmentService) studentDetail(ctx context.Context, principal Principal, assignmentID uint) (dto.AssignmentDetailResponse, error) {
	assignment, err := s.assignments.GetForStudent(ctx, assignmentID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentDetailResponse{}, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}

		return dto.AssignmentDetailResponse{}, err
	}

	detail := dto.AssignmentDetailResponse{
		AssignmentResponse: dto.NewAssignmentResponse(assignment),
		GroupName:          assignment.Group.Name,
	}

	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return detail, nil
		}

		return dto.AssignmentDetailResponse{}, err
	}

	response := dto.NewSubmissionResponse(submission)
	resolveSubmissionContent(&response, s.blobs)
	detail.Submission = &response

	return detail, nil
}

func resolveSubmissionContent(submission *dto.SubmissionResponse, blobs storage.BlobStore) {
	if blobs == nil || submission.SubmissionType != models.SubmissionTypeFile {
		return
	}

	submission.ContentURL = blobs.Resolve(submission.Content)
}

func studentAssignmentsCacheKey(studentID uint) string {
	return fmt.Sprintf("assignments:student:%d", studentID)
}
