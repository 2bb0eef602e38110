package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careworks_backend/internal/services"
	"careworks_backend/internal/services/dto"
)

type AuthHandler struct {
	*BaseHandler
	authService services.AuthService
}

func NewAuthHandler(base *BaseHandler, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		authService: authService,
	}
}

// RegisterRoutes mounts the credential endpoints. change-password sits
// behind the auth middleware; everything else is public.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/verify-otp", h.VerifyOTP)
		auth.POST("/reset-password", h.ResetPassword)
	}

	protected := rg.Group("/auth")
	protected.Use(authMW)
	{
		protected.POST("/change-password", h.ChangePassword)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.authService.Register(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusCreated,
		"Registration successful. Please check your email to verify your account.", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	response, err := h.authService.Login(&req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Login successful", response)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.authService.VerifyEmail(req.Token); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Email successfully verified", nil)
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.authService.ResendVerification(req.Email); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Verification email sent", nil)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.authService.ForgotPassword(req.Email); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Password reset code sent", nil)
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.authService.VerifyOTP(req.Email, req.OTP); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "OTP verified", nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.authService.ResetPassword(req.Email, req.NewPassword); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Password has been reset", nil)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	err := h.authService.ChangePassword(userID, req.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Password changed successfully", nil)
}
