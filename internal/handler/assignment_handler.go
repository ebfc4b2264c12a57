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

// AssignmentHandler handles assignment endpoints for both roles.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register wires the assignment routes.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireRole(models.RoleTeacher), h.create)
	router.Get("/teacher", middleware.RequireRole(models.RoleTeacher), h.listForTeacher)
	router.Get("/student", middleware.RequireRole(models.RoleStudent), h.listForStudent)
	router.Get("/:id", h.detail)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Create(c.Context(), principalFromContext(c), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) listForTeacher(c *fiber.Ctx) error {
	assignments, err := h.service.ListForTeacher(c.Context(), principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) listForStudent(c *fiber.Ctx) error {
	assignments, err := h.service.ListForStudent(c.Context(), principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) detail(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	detail, err := h.service.GetDetail(c.Context(), principalFromContext(c), assignmentID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", detail)
}
