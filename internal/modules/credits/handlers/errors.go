package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/utils"
)

// respondError maps service errors onto HTTP statuses
func respondError(c *fiber.Ctx, err error) error {
	var insufficient *services.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":           "insufficient credits",
			"current_balance": insufficient.CurrentBalance,
			"requested":       insufficient.Requested,
		})
	case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, services.ErrMissionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrIdempotencyKeyReused),
		errors.Is(err, services.ErrAccountClosed),
		errors.Is(err, services.ErrMissionExpired),
		errors.Is(err, services.ErrNotReferred):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrMissingUserID),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidCursor),
		errors.Is(err, services.ErrInvalidReferralCode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrRetriesExhausted):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "too much contention, retry later"})
	}

	utils.LogError("❌ Request failed", err, map[string]interface{}{"path": c.Path(), "method": c.Method()})
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
