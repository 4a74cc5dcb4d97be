package auth

// Roles carried in the role claim
const (
	RoleUser    = "user"
	RoleService = "service"
	RoleAdmin   = "admin"
)

// Locals keys set by AuthMiddleware
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

// TokenClaims is the subset of token claims the ledger relies on
type TokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
