package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/ratelimit"
)

// Handlers groups every credits handler for route registration
type Handlers struct {
	Health       *HealthHandler
	Accounts     *AccountHandler
	Tools        *ToolHandler
	Referrals    *ReferralHandler
	Gamification *GamificationHandler
	Admin        *AdminHandler
}

// RegisterRoutes mounts the credits API on app. limiter may be nil.
func RegisterRoutes(app fiber.Router, h Handlers, jwtService *auth.JWTService, limiter *ratelimit.RateLimiter) {
	app.Get("/health", h.Health.GetHealth)

	api := app.Group("", auth.AuthMiddleware(jwtService))
	self := auth.RequireSelfOrRole("userId", auth.RoleService, auth.RoleAdmin)
	trusted := auth.RequireRole(auth.RoleService, auth.RoleAdmin)

	// Accounts
	api.Post("/accounts", trusted, h.Accounts.Signup)
	api.Get("/accounts/:userId/balance", self, h.Accounts.GetBalance)
	api.Get("/accounts/:userId/history", self, h.Accounts.GetHistory)
	api.Get("/accounts/:userId/statement", self, h.Accounts.GetStatement)
	api.Post("/accounts/:userId/earn", trusted, h.Accounts.Earn)
	api.Post("/accounts/:userId/refund", trusted, h.Accounts.Refund)

	// Tools
	toolRun := []fiber.Handler{auth.RequireRole(auth.RoleUser, auth.RoleService, auth.RoleAdmin)}
	if limiter != nil {
		toolRun = append(toolRun, limiter.Handler(auth.UserID))
	}
	toolRun = append(toolRun, h.Tools.RunTool)
	api.Post("/tools/run", toolRun...)

	// Referrals
	api.Post("/referrals/link", trusted, h.Referrals.Link)
	api.Post("/referrals/first-purchase", trusted, h.Referrals.FirstPurchase)
	api.Get("/referrals/:userId", self, h.Referrals.GetStats)
	api.Get("/referrals/:userId/qr", self, h.Referrals.GetQRCode)

	// Gamification and missions
	api.Get("/gamification/:userId", self, h.Gamification.GetProfile)
	api.Post("/gamification/:userId/level-up", self, h.Gamification.LevelUp)
	api.Get("/missions/:userId", self, h.Gamification.GetMissions)
	api.Post("/missions/:userId/:missionId/progress", trusted, h.Gamification.AdvanceMission)

	// Admin
	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.Post("/accounts/:userId/adjust", h.Admin.Adjust)
	admin.Delete("/accounts/:userId", h.Admin.CloseAccount)
	admin.Get("/accounts/:userId/verify", h.Admin.VerifyAccount)
	admin.Post("/jobs/monthly-reset", h.Admin.RunMonthlyReset)
	admin.Get("/audit", h.Admin.GetAuditLogs)
}
