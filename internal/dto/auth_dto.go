package dto

import "github.com/shopspring/decimal"

// ── Request DTOs ──────────────────────────────────────────────────────────────

type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=120"`
	Name     string  `json:"name"     validate:"required,min=2,max=120"`
	Email    *string `json:"email"    validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UpdateProfileRequest struct {
	Name        *string          `json:"name"         validate:"omitempty,min=2,max=120"`
	Email       *string          `json:"email"        validate:"omitempty,email"`
	PhoneNumber *string          `json:"phone_number" validate:"omitempty,max=15"`
	BudgetLimit *decimal.Decimal `json:"budget_limit"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=shopper moderator admin"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type UserResponse struct {
	ID          string           `json:"id"`
	Username    string           `json:"username"`
	Name        string           `json:"name"`
	Email       *string          `json:"email,omitempty"`
	Role        string           `json:"role"`
	PhoneNumber *string          `json:"phone_number,omitempty"`
	BudgetLimit *decimal.Decimal `json:"budget_limit,omitempty"`
	Active      bool             `json:"active"`
}

type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         UserResponse `json:"user"`
}
