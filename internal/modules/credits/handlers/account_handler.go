package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/export"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/services"
)

// statements read at most maxStatementPages pages of statementPageSize entries
const (
	maxStatementPages = 50
	statementPageSize = 100
)

// HeaderStatementTruncated is set on statements that left out older entries
const HeaderStatementTruncated = "X-Statement-Truncated"

type AccountHandler struct {
	credits  *services.CreditService
	signup   *services.SignupService
	exporter *export.Service

	statementPages    int
	statementPageSize int
}

func NewAccountHandler(credits *services.CreditService, signup *services.SignupService, exporter *export.Service) *AccountHandler {
	return &AccountHandler{
		credits:           credits,
		signup:            signup,
		exporter:          exporter,
		statementPages:    maxStatementPages,
		statementPageSize: statementPageSize,
	}
}

type SignupBody struct {
	UserID       string `json:"user_id"`
	Tier         string `json:"tier"`
	ReferralCode string `json:"referral_code"`
}

type CreditBody struct {
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

func idempotencyKey(c *fiber.Ctx, fromBody string) string {
	if key := c.Get("Idempotency-Key"); key != "" {
		return key
	}
	return fromBody
}

// Signup godoc
// @Summary Create a credit account
// @Description Initialize an account with its tier bonus, issue a referral code and link an optional referral
// @Tags Accounts
// @Accept json
// @Produce json
// @Param body body SignupBody true "Signup"
// @Success 201 {object} services.SignupResult
// @Failure 400 {object} map[string]interface{}
// @Router /accounts [post]
func (h *AccountHandler) Signup(c *fiber.Ctx) error {
	var body SignupBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if body.UserID == "" {
		return badRequest(c, "user_id is required")
	}
	tier, err := models.ParseTier(body.Tier)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.signup.Signup(c.UserContext(), services.SignupRequest{
		UserID:       body.UserID,
		Tier:         tier,
		ReferralCode: body.ReferralCode,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetBalance godoc
// @Summary Get credit balance
// @Tags Accounts
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /accounts/{userId}/balance [get]
func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	acc, err := h.credits.GetAccount(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id":      acc.UserID,
		"balance":      acc.Balance,
		"total_earned": acc.TotalEarned,
		"total_spent":  acc.TotalSpent,
		"monthly_used": acc.MonthlyUsed,
		"tier":         acc.Tier,
		"closed":       acc.IsClosed(),
	})
}

// GetHistory godoc
// @Summary List ledger entries
// @Description Newest first, paged with an opaque cursor
// @Tags Accounts
// @Produce json
// @Param userId path string true "User ID"
// @Param limit query int false "Page size (max 100)"
// @Param cursor query string false "Cursor from the previous page"
// @Success 200 {object} services.HistoryPage
// @Router /accounts/{userId}/history [get]
func (h *AccountHandler) GetHistory(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}

	page, err := h.credits.GetHistory(c.UserContext(), c.Params("userId"), limit, c.Query("cursor"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetStatement godoc
// @Summary Download a ledger statement
// @Tags Accounts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Param userId path string true "User ID"
// @Param format query string false "xlsx or pdf"
// @Success 200 {file} binary
// @Header 200 {string} X-Statement-Truncated "true when older entries were omitted"
// @Router /accounts/{userId}/statement [get]
func (h *AccountHandler) GetStatement(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.UserContext()
	userID := c.Params("userId")
	acc, err := h.credits.GetAccount(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}

	st := &export.Statement{
		UserID:      acc.UserID,
		Tier:        string(acc.Tier),
		GeneratedAt: time.Now().UTC(),
		Balance:     acc.Balance,
		TotalEarned: acc.TotalEarned,
		TotalSpent:  acc.TotalSpent,
		Style:       export.DefaultStyle(),
	}
	cursor := ""
	for i := 0; i < h.statementPages; i++ {
		page, err := h.credits.GetHistory(ctx, userID, h.statementPageSize, cursor)
		if err != nil {
			return respondError(c, err)
		}
		for _, e := range page.Entries {
			st.Lines = append(st.Lines, export.StatementLine{
				EntryID:          e.ID,
				CreatedAt:        e.CreatedAt,
				Type:             string(e.Type),
				Amount:           e.Amount,
				Reason:           e.Reason,
				RelatedTool:      e.RelatedTool,
				ResultingBalance: e.ResultingBalance,
			})
		}
		cursor = page.NextCursor
		if cursor == "" {
			break
		}
	}
	st.Truncated = cursor != ""

	out, err := h.exporter.Render(st, format)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, out.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+out.FileName+`"`)
	if st.Truncated {
		c.Set(HeaderStatementTruncated, "true")
	}
	return c.Send(out.Body)
}

// Earn godoc
// @Summary Grant credits
// @Tags Accounts
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param body body CreditBody true "Grant"
// @Success 200 {object} services.MutationResult
// @Router /accounts/{userId}/earn [post]
func (h *AccountHandler) Earn(c *fiber.Ctx) error {
	var body CreditBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	res, err := h.credits.Earn(c.UserContext(), c.Params("userId"), body.Amount, body.Reason, idempotencyKey(c, body.IdempotencyKey))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// Refund godoc
// @Summary Refund credits
// @Tags Accounts
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param body body CreditBody true "Refund"
// @Success 200 {object} services.MutationResult
// @Router /accounts/{userId}/refund [post]
func (h *AccountHandler) Refund(c *fiber.Ctx) error {
	var body CreditBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	res, err := h.credits.Refund(c.UserContext(), c.Params("userId"), body.Amount, body.Reason, idempotencyKey(c, body.IdempotencyKey))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
