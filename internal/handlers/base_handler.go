package handlers

import (
	"github.com/gin-gonic/gin"

	"careworks_backend/internal/logger"
	"careworks_backend/internal/models"
	"careworks_backend/internal/validator"
	"careworks_backend/pkg/apperrors"
	"careworks_backend/pkg/contextkeys"
)

type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{
		validator: v,
	}
}

// Respond writes the standard success envelope.
func (h *BaseHandler) Respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, apperrors.Response{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// BindAndValidate_JSON binds the JSON body and runs struct validation.
// On failure it writes the error response and returns false.
func (h *BaseHandler) BindAndValidate_JSON(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBindJSON(obj); err != nil {
		logger.CtxWithError(ctx, "Failed to bind JSON body", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body: "+err.Error()))
		return false
	}

	if err := h.validator.Validate(obj); err != nil {
		if vErr, ok := err.(*validator.ValidationError); ok {
			logger.CtxWarn(ctx, "Validation failed", "errors", vErr.Errors, "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.ValidationError(vErr.Errors))
		} else {
			logger.CtxWithError(ctx, "Internal validator error", err, "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.InternalError(err))
		}
		return false
	}
	return true
}

// HandleServiceError logs and maps a service failure onto the envelope.
func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		logger.CtxWarn(ctx, "Service error",
			"error", appErr.Message,
			"code", appErr.Code,
			"path", c.Request.URL.Path,
		)
		apperrors.HandleError(c, appErr)
	} else {
		logger.CtxWithError(ctx, "Internal server error", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.InternalError(err))
	}
}

// GetAndAuthorizeUserID returns the account id the auth middleware resolved.
func (h *BaseHandler) GetAndAuthorizeUserID(c *gin.Context) (string, bool) {
	ctx := c.Request.Context()

	userIDVal, exists := c.Get("userID")
	if !exists {
		logger.CtxWarn(ctx, "Unauthorized access: userID not found in context",
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
		)
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return "", false
	}

	userIDStr, ok := userIDVal.(string)
	if !ok || userIDStr == "" {
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("Invalid user ID in context"))
		return "", false
	}

	return userIDStr, true
}

// CurrentUser returns the account the auth middleware attached to the request.
func (h *BaseHandler) CurrentUser(c *gin.Context) (*models.User, bool) {
	val, exists := c.Get(string(contextkeys.CurrentUserKey))
	if !exists {
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return nil, false
	}
	user, ok := val.(*models.User)
	if !ok {
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return nil, false
	}
	return user, true
}
