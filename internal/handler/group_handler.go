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

// GroupHandler handles class group endpoints for both roles.
type GroupHandler struct {
	service service.GroupService
	logger  zerolog.Logger
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(service service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		service: service,
		logger:  logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register wires the group routes. The role middleware narrows each
// route before the service runs its own gate.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireRole(models.RoleTeacher), h.create)
	router.Post("/join", middleware.RequireRole(models.RoleStudent), h.join)
	router.Get("/teacher", middleware.RequireRole(models.RoleTeacher), h.listForTeacher)
	router.Get("/student", middleware.RequireRole(models.RoleStudent), h.listForStudent)
	router.Get("/:id", h.detail)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	var payload dto.GroupCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.service.Create(c.Context(), principalFromContext(c), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", group)
}

func (h *GroupHandler) join(c *fiber.Ctx) error {
	var payload dto.GroupJoinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	membership, err := h.service.Join(c.Context(), principalFromContext(c), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "joined group", membership)
}

func (h *GroupHandler) listForTeacher(c *fiber.Ctx) error {
	groups, err := h.service.ListForTeacher(c.Context(), principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "groups retrieved", groups)
}

func (h *GroupHandler) listForStudent(c *fiber.Ctx) error {
	groups, err := h.service.ListForStudent(c.Context(), principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "groups retrieved", groups)
}

func (h *GroupHandler) detail(c *fiber.Ctx) error {
	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid group id")
	}

	detail, err := h.service.GetDetail(c.Context(), principalFromContext(c), groupID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "group retrieved", detail)
}
