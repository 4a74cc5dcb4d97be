package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
)

type ToolHandler struct {
	usage *services.UsageService
}

func NewToolHandler(usage *services.UsageService) *ToolHandler {
	return &ToolHandler{usage: usage}
}

// RunTool godoc
// @Summary Charge a tool run
// @Description Spend credits, award XP, convert level-ups and advance weekly missions in one transaction
// @Tags Tools
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param body body services.ToolRunRequest true "Tool run"
// @Success 200 {object} services.ToolRunResult
// @Failure 402 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /tools/run [post]
func (h *ToolHandler) RunTool(c *fiber.Ctx) error {
	var req services.ToolRunRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}
	if req.ToolID == "" {
		return badRequest(c, "tool_id is required")
	}
	if req.CreditCost <= 0 {
		return badRequest(c, "credit_cost must be greater than 0")
	}
	if req.MinutesSaved < 0 {
		return badRequest(c, "minutes_saved cannot be negative")
	}

	role := auth.Role(c)
	if role == auth.RoleUser && auth.UserID(c) != req.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)

	res, err := h.usage.RunTool(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
