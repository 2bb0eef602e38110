package dto

import "careworks_backend/internal/models"

// RegisterRequest - new account registration.
type RegisterRequest struct {
	Email       string          `json:"email" binding:"required,email"`
	Password    string          `json:"password" binding:"required,min=8"`
	Role        models.UserRole `json:"role" binding:"required,oneof=client worker"`
	FirstName   string          `json:"first_name" binding:"required"`
	LastName    string          `json:"last_name" binding:"required"`
	PhoneNumber string          `json:"phone_number"`
}

// LoginRequest - credential check and session issuance.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest carries the raw token from the emailed link.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResendVerificationRequest - re-issue the verification token.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordRequest - start the OTP reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyOTPRequest - check the emailed reset code.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

// ResetPasswordRequest - set a new password after OTP verification.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePasswordRequest - authenticated password change.
type ChangePasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// UserDTO is the account summary returned at login.
type UserDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	Approved bool            `json:"approved"`
}

// LoginResponse - session token plus the account summary.
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}
