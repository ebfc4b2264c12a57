package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/classdesk/classdesk-api/internal/dto"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/observability"
	"github.com/classdesk/classdesk-api/internal/repository"
	"github.com/classdesk/classdesk-api/internal/storage"
)

// SubmissionService handles the create-or-replace submission workflow and
// the role-scoped submission views.
//
// Submit upholds a strict ordering: the new blob is written before the row
// is committed, and the replaced blob is deleted only afterwards. A blob
// write failure aborts the whole operation before any row mutation; a
// failure to delete the old blob is logged and swallowed. The row therefore
// never points at a blob that was not durably written, at the cost of a
// transient duplicate blob during the replace window.
type SubmissionService interface {
	Submit(ctx context.Context, principal Principal, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	ListForAssignment(ctx context.Context, principal Principal, assignmentID uint) ([]dto.SubmissionResponse, error)
	GetOwn(ctx context.Context, principal Principal, assignmentID uint) (*dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	gate        *AuthorizationGate
	validator   *validator.Validate
	blobs       storage.BlobStore
	events      *EventPublisher
	cache       *redis.Client
	maxBytes    int64
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. The redis
// client and event publisher may be nil.
func NewSubmissionService(submissions repository.SubmissionRepository, assignments repository.AssignmentRepository, gate *AuthorizationGate, validate *validator.Validate, blobs storage.BlobStore, events *EventPublisher, cache *redis.Client, maxBytes int64, logger zerolog.Logger) SubmissionService {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}

	return &submissionService{
		submissions: submissions,
		assignments: assignments,
		gate:        gate,
		validator:   validate,
		blobs:       blobs,
		events:      events,
		cache:       cache,
		maxBytes:    maxBytes,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/classdesk/classdesk-api/internal/service/submission"),
		now:         time.Now,
	}
}

// Submit creates or replaces the caller's submission for the assignment.
func (s *submissionService) Submit(ctx context.Context, principal Principal, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int("submission.assignment_id", int(payload.AssignmentID)),
		attribute.Int("submission.student_id", int(principal.ID)),
		attribute.String("submission.type", payload.SubmissionType),
	))
	defer span.End()

	assignment, err := s.gate.RequireAssignmentMember(ctx, principal, payload.AssignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
		return dto.SubmissionResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	submission := models.Submission{
		AssignmentID:   assignment.ID,
		StudentID:      principal.ID,
		SubmissionType: payload.SubmissionType,
		SubmittedAt:    s.now(),
	}

	var newBlobKey string

	switch payload.SubmissionType {
	case models.SubmissionTypeFile:
		decoded, err := decodeFilePayload(payload.Content, s.maxBytes)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "payload decode failed")
			return dto.SubmissionResponse{}, err
		}

		// New blob first: the row must never reference a key that was not
		// durably written.
		key, err := s.blobs.Put(ctx, decoded.Data, decoded.MimeType)
		if err != nil {
			observability.BlobOperations().WithLabelValues("put", "error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "blob write failed")
			return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrStorageFailure, err)
		}
		observability.BlobOperations().WithLabelValues("put", "ok").Inc()

		metadata, err := json.Marshal(dto.SubmissionMetadata{
			MimeType:  decoded.MimeType,
			SizeBytes: decoded.SizeBytes,
			Checksum:  decoded.Checksum,
		})
		if err != nil {
			s.discardBlob(ctx, key)
			return dto.SubmissionResponse{}, err
		}

		newBlobKey = key
		submission.Content = key
		submission.Metadata = datatypes.JSON(metadata)
		span.SetAttributes(
			attribute.String("submission.blob_key", key),
			attribute.Int64("submission.size_bytes", decoded.SizeBytes),
		)
	case models.SubmissionTypeLink:
		link := strings.TrimSpace(payload.Content)
		if link == "" {
			return dto.SubmissionResponse{}, fmt.Errorf("%w: link is empty", ErrInvalidPayload)
		}
		submission.Content = link
	default:
		return dto.SubmissionResponse{}, fmt.Errorf("%w: unknown submission type %q", ErrInvalidPayload, payload.SubmissionType)
	}

	// Capture the prior row so the replaced blob can be cleaned up after
	// the new state lands. The unique index on (assignment_id, student_id)
	// remains the source of truth; this read is only for blob lifecycle.
	prior, priorExists, err := s.priorSubmission(ctx, assignment.ID, principal.ID)
	if err != nil {
		s.discardBlob(ctx, newBlobKey)
		return dto.SubmissionResponse{}, err
	}

	if err := s.submissions.Upsert(ctx, &submission); err != nil {
		s.discardBlob(ctx, newBlobKey)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return dto.SubmissionResponse{}, err
	}

	// Old blob last, and only best-effort: a leftover blob is recoverable
	// garbage, a dangling reference is not.
	if priorExists && prior.IsFile() && prior.Content != "" && prior.Content != submission.Content {
		if err := s.blobs.Delete(ctx, prior.Content); err != nil {
			observability.BlobOperations().WithLabelValues("delete", "error").Inc()
			s.logger.Warn().Err(err).Str("key", prior.Content).Msg("failed to delete replaced blob")
		} else {
			observability.BlobOperations().WithLabelValues("delete", "ok").Inc()
		}
	}

	stored, err := s.submissions.GetByAssignmentAndStudent(ctx, assignment.ID, principal.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.invalidateStudentAssignments(ctx, principal.ID)
	s.events.Publish(ctx, Event{
		Type:         EventSubmissionReceived,
		GroupID:      assignment.GroupID,
		AssignmentID: assignment.ID,
		StudentID:    principal.ID,
	})

	observability.SubmissionsReceived().WithLabelValues(submission.SubmissionType).Inc()
	if priorExists {
		observability.SubmissionReplacements().Inc()
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("student_id", principal.ID).
		Str("type", submission.SubmissionType).
		Bool("replaced", priorExists).
		Msg("submission stored")

	span.SetStatus(codes.Ok, "stored")

	response := dto.NewSubmissionResponse(stored)
	resolveSubmissionContent(&response, s.blobs)

	return response, nil
}

// ListForAssignment returns every submission for an assignment the teacher
// owns, with submitter usernames, ordered by submission id. A teacher
// without ownership gets NotFound.
func (s *submissionService) ListForAssignment(ctx context.Context, principal Principal, assignmentID uint) ([]dto.SubmissionResponse, error) {
	if err := s.gate.RequireTeacher(principal); err != nil {
		return nil, err
	}

	if _, err := s.assignments.GetOwned(ctx, assignmentID, principal.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}

		return nil, err
	}

	rows, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(rows))
	for _, row := range rows {
		response := dto.NewSubmissionResponse(models.Submission{
			ID:             row.ID,
			AssignmentID:   row.AssignmentID,
			StudentID:      row.StudentID,
			SubmissionType: row.SubmissionType,
			Content:        row.Content,
			Metadata:       row.Metadata,
			SubmittedAt:    row.SubmittedAt,
		})
		response.Username = row.Username
		resolveSubmissionContent(&response, s.blobs)
		responses = append(responses, response)
	}

	return responses, nil
}

// GetOwn returns the student's own submission for the assignment, or nil
// when none exists. A student without a membership gets NotFound.
func (s *submissionService) GetOwn(ctx context.Context, principal Principal, assignmentID uint) (*dto.SubmissionResponse, error) {
	if err := s.gate.RequireStudent(principal); err != nil {
		return nil, err
	}

	if _, err := s.assignments.GetForStudent(ctx, assignmentID, principal.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}

		return nil, err
	}

	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	response := dto.NewSubmissionResponse(submission)
	resolveSubmissionContent(&response, s.blobs)

	return &response, nil
}

func (s *submissionService) priorSubmission(ctx context.Context, assignmentID, studentID uint) (models.Submission, bool, error) {
	prior, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, false, nil
		}

		return models.Submission{}, false, err
	}

	return prior, true, nil
}

// discardBlob removes a blob written during an operation that later failed.
func (s *submissionService) discardBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}

	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to discard blob after aborted submit")
	}
}

func (s *submissionService) invalidateStudentAssignments(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}

	key := studentAssignmentsCacheKey(studentID)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate assignment cache")
	}
}
