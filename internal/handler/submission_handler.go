package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classdesk/classdesk-api/internal/dto"
	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/internal/utils"
)

// SubmissionHandler handles submission upload and review endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the submission routes.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireRole(models.RoleStudent), h.submit)
	router.Get("/:assignmentId", h.listOrGetOwn)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Submit(c.Context(), principalFromContext(c), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", submission)
}

// listOrGetOwn serves both roles on the same route. Teachers receive the
// roster of submissions for an assignment they own, students receive
// their own submission or null when they have not submitted yet.
func (h *SubmissionHandler) listOrGetOwn(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	principal := principalFromContext(c)

	if principal.IsTeacher() {
		submissions, svcErr := h.service.ListForAssignment(c.Context(), principal, assignmentID)
		if svcErr != nil {
			return handleServiceError(c, h.logger, svcErr)
		}

		return utils.SendSuccess(c, "submissions retrieved", submissions)
	}

	submission, svcErr := h.service.GetOwn(c.Context(), principal, assignmentID)
	if svcErr != nil {
		return handleServiceError(c, h.logger, svcErr)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}
