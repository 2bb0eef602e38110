package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careworks_backend/internal/handlers"
)

// AppHandlers bundles every mounted handler.
type AppHandlers struct {
	AuthHandler *handlers.AuthHandler
	UserHandler *handlers.UserHandler
}

// RegisterRoutes mounts the HTTP API.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *AppHandlers,
	authMW gin.HandlerFunc,
	adminMW gin.HandlerFunc,
) {
	ginRouter.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api, authMW)
		appHandlers.UserHandler.RegisterRoutes(api, authMW, adminMW)
	}
}
