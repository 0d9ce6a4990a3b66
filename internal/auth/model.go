package auth

import (
	"time"
)

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=5,max=50"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
	FirstName   string `json:"first_name" validate:"omitempty,min=1,max=50"`
	LastName    string `json:"last_name" validate:"omitempty,min=1,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse keeps refresh_token in the body for client compatibility;
// refresh tokens are not issued.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken *string   `json:"refresh_token"`
	Message      string    `json:"message"`
	ExpiresAt    time.Time `json:"-"`
}
