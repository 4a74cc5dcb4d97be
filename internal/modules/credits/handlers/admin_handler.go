package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
)

type AdminHandler struct {
	credits  *services.CreditService
	resetJob *services.ResetJob
	audit    *audit.Service
}

func NewAdminHandler(credits *services.CreditService, resetJob *services.ResetJob, auditService *audit.Service) *AdminHandler {
	return &AdminHandler{
		credits:  credits,
		resetJob: resetJob,
		audit:    auditService,
	}
}

// actor names the admin in audit records
func actor(c *fiber.Ctx) string {
	if id := auth.UserID(c); id != "" {
		return id
	}
	return "anonymous-admin"
}

// Adjust godoc
// @Summary Signed manual balance adjustment
// @Tags Admin
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param body body CreditBody true "Adjustment; amount may be negative"
// @Success 200 {object} services.MutationResult
// @Failure 402 {object} map[string]interface{}
// @Router /admin/accounts/{userId}/adjust [post]
func (h *AdminHandler) Adjust(c *fiber.Ctx) error {
	var body CreditBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if body.Reason == "" {
		return badRequest(c, "reason is required")
	}

	res, err := h.credits.Adjust(c.UserContext(), actor(c), c.Params("userId"), body.Amount, body.Reason, idempotencyKey(c, body.IdempotencyKey))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// CloseAccount godoc
// @Summary Close an account
// @Description Later mutations fail; history stays readable
// @Tags Admin
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Router /admin/accounts/{userId} [delete]
func (h *AdminHandler) CloseAccount(c *fiber.Ctx) error {
	acc, err := h.credits.CloseAccount(c.UserContext(), actor(c), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(acc)
}

// VerifyAccount godoc
// @Summary Reconcile an account against its ledger
// @Tags Admin
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} services.Reconciliation
// @Router /admin/accounts/{userId}/verify [get]
func (h *AdminHandler) VerifyAccount(c *fiber.Ctx) error {
	rec, err := h.credits.VerifyAccount(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

// RunMonthlyReset godoc
// @Summary Run the monthly reset now
// @Description Idempotent within a calendar month
// @Tags Admin
// @Produce json
// @Success 200 {object} services.ResetReport
// @Router /admin/jobs/monthly-reset [post]
func (h *AdminHandler) RunMonthlyReset(c *fiber.Ctx) error {
	report, err := h.resetJob.Run(c.UserContext())
	if err != nil {
		if report == nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error(), "report": report})
	}
	return c.JSON(report)
}

// GetAuditLogs godoc
// @Summary List audit records
// @Tags Admin
// @Produce json
// @Param actor_id query string false "Actor"
// @Param action query string false "Action"
// @Param entity query string false "Entity"
// @Param entity_id query string false "Entity ID"
// @Param start_date query string false "RFC3339 lower bound"
// @Param end_date query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} audit.AuditLogResponse
// @Router /admin/audit [get]
func (h *AdminHandler) GetAuditLogs(c *fiber.Ctx) error {
	filter := audit.AuditFilter{
		ActorID:  c.Query("actor_id"),
		Action:   c.Query("action"),
		Entity:   c.Query("entity"),
		EntityID: c.Query("entity_id"),
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	for name, dst := range map[string]**time.Time{"start_date": &filter.StartDate, "end_date": &filter.EndDate} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, name+" must be RFC3339")
		}
		*dst = &t
	}

	resp, err := h.audit.GetLogs(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}
