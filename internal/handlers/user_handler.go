package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careworks_backend/internal/repositories"
	"careworks_backend/internal/services/dto"
	"careworks_backend/pkg/apperrors"
)

type UserHandler struct {
	*BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(base *BaseHandler, userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{
		BaseHandler: base,
		userRepo:    userRepo,
	}
}

func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	users := rg.Group("/users")
	users.Use(authMW)
	{
		users.GET("/me", h.Me)
	}

	admin := rg.Group("/admin")
	admin.Use(authMW)
	admin.Use(adminMW)
	{
		admin.GET("/users/:userId", h.GetUser)
	}
}

// Me returns the account the auth middleware resolved for this request.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := h.CurrentUser(c)
	if !ok {
		return
	}

	h.Respond(c, http.StatusOK, "OK", dto.UserDTO{
		ID:       user.ID,
		Name:     user.DisplayName(),
		Email:    user.Email,
		Role:     user.Role,
		Approved: user.Approved,
	})
}

// GetUser returns any account summary; admin only.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userRepo.FindByID(c.Param("userId"))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			h.HandleServiceError(c, apperrors.ErrAccountNotFound)
			return
		}
		h.HandleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "OK", dto.UserDTO{
		ID:       user.ID,
		Name:     user.DisplayName(),
		Email:    user.Email,
		Role:     user.Role,
		Approved: user.Approved,
	})
}
