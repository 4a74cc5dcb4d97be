package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
)

type GamificationHandler struct {
	gamification *services.GamificationService
	missions     *services.MissionService
}

func NewGamificationHandler(gamification *services.GamificationService, missions *services.MissionService) *GamificationHandler {
	return &GamificationHandler{
		gamification: gamification,
		missions:     missions,
	}
}

type ProgressBody struct {
	Amount int64 `json:"amount"`
}

// GetProfile godoc
// @Summary Gamification profile
// @Tags Gamification
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} services.ProfileView
// @Router /gamification/{userId} [get]
func (h *GamificationHandler) GetProfile(c *fiber.Ctx) error {
	view, err := h.gamification.GetGamificationProfile(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// LevelUp godoc
// @Summary Convert the time bank for the next pending level
// @Tags Gamification
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} services.LevelUpResult
// @Router /gamification/{userId}/level-up [post]
func (h *GamificationHandler) LevelUp(c *fiber.Ctx) error {
	res, err := h.gamification.OnLevelUp(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetMissions godoc
// @Summary Weekly missions
// @Description Assigns the current week's missions when missing
// @Tags Missions
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} services.MissionView
// @Router /missions/{userId} [get]
func (h *GamificationHandler) GetMissions(c *fiber.Ctx) error {
	missions, err := h.missions.AssignWeekly(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"missions": missions})
}

// AdvanceMission godoc
// @Summary Add progress to a mission
// @Tags Missions
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param missionId path string true "Mission ID"
// @Param body body ProgressBody true "Progress"
// @Success 200 {object} services.MissionProgress
// @Router /missions/{userId}/{missionId}/progress [post]
func (h *GamificationHandler) AdvanceMission(c *fiber.Ctx) error {
	var body ProgressBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if body.Amount <= 0 {
		return badRequest(c, "amount must be greater than 0")
	}

	missionID, err := url.PathUnescape(c.Params("missionId"))
	if err != nil {
		return badRequest(c, "invalid mission id")
	}

	res, err := h.missions.Advance(c.UserContext(), c.Params("userId"), missionID, body.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
