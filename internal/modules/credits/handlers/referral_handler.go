package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
)

type ReferralHandler struct {
	referrals *services.ReferralService
}

func NewReferralHandler(referrals *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

type LinkBody struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

type FirstPurchaseBody struct {
	ReferrerID  string `json:"referrer_id"`
	PurchaserID string `json:"purchaser_id"`
}

// GetStats godoc
// @Summary Referral stats
// @Description Code, share link, referred count and credits earned; issues a code on first call
// @Tags Referrals
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} services.ReferralStats
// @Router /referrals/{userId} [get]
func (h *ReferralHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.referrals.GetReferralStats(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetQRCode godoc
// @Summary Referral share QR code
// @Tags Referrals
// @Produce png
// @Param userId path string true "User ID"
// @Success 200 {file} binary
// @Router /referrals/{userId}/qr [get]
func (h *ReferralHandler) GetQRCode(c *fiber.Ctx) error {
	png, err := h.referrals.QRCode(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// Link godoc
// @Summary Link a user to a referral code
// @Tags Referrals
// @Accept json
// @Produce json
// @Param body body LinkBody true "Link"
// @Success 200 {object} services.LinkResult
// @Failure 400 {object} map[string]interface{}
// @Router /referrals/link [post]
func (h *ReferralHandler) Link(c *fiber.Ctx) error {
	var body LinkBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if body.UserID == "" || body.Code == "" {
		return badRequest(c, "user_id and code are required")
	}

	res, err := h.referrals.Link(c.UserContext(), body.UserID, body.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// FirstPurchase godoc
// @Summary Reward the referrer for a first purchase
// @Tags Referrals
// @Accept json
// @Produce json
// @Param body body FirstPurchaseBody true "Purchase"
// @Success 200 {object} services.MutationResult
// @Router /referrals/first-purchase [post]
func (h *ReferralHandler) FirstPurchase(c *fiber.Ctx) error {
	var body FirstPurchaseBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if body.ReferrerID == "" || body.PurchaserID == "" {
		return badRequest(c, "referrer_id and purchaser_id are required")
	}

	res, err := h.referrals.RewardFirstPurchase(c.UserContext(), body.ReferrerID, body.PurchaserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
