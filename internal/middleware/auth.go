package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"careworks_backend/internal/auth"
	"careworks_backend/internal/logger"
	"careworks_backend/internal/models"
	"careworks_backend/internal/repositories"
	"careworks_backend/pkg/contextkeys"
)

// AuthMiddleware resolves the bearer token to a stored account. It rejects
// requests with no token, a token that fails verification, or a token whose
// account no longer exists, and attaches the account to the context.
func AuthMiddleware(userRepo repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "statusCode": http.StatusUnauthorized, "message": "No token provided"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.ParseToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "statusCode": http.StatusUnauthorized, "message": "Token verification failed"})
			return
		}

		user, err := userRepo.FindByID(claims.UserID())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "statusCode": http.StatusUnauthorized, "message": "User not found"})
			return
		}

		ctx := logger.WithUserID(c.Request.Context(), user.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("userID", user.ID)
		c.Set("role", user.Role)
		c.Set(string(contextkeys.CurrentUserKey), user)
		c.Next()
	}
}

// AdminMiddleware permits continuation only for admin accounts. It assumes
// AuthMiddleware already resolved the account.
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(models.UserRoleAdmin)
}

// RoleMiddleware restricts a route to one role.
func RoleMiddleware(requiredRole models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := roleFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "statusCode": http.StatusForbidden, "message": "Access denied: no role"})
			return
		}

		if role != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "statusCode": http.StatusForbidden, "message": "Access denied: insufficient permissions"})
			return
		}

		c.Next()
	}
}

// RequireRoles restricts a route to any of the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		role, ok := roleFromContext(c)
		if !ok || !roleSet[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "statusCode": http.StatusForbidden, "message": "Access denied: insufficient permissions"})
			return
		}

		c.Next()
	}
}

func roleFromContext(c *gin.Context) (models.UserRole, bool) {
	roleVal, exists := c.Get("role")
	if !exists {
		return "", false
	}

	if role, ok := roleVal.(models.UserRole); ok {
		return role, true
	}
	// Tolerate a plain string if some caller stored it that way.
	if roleStr, ok := roleVal.(string); ok {
		return models.UserRole(roleStr), true
	}
	return "", false
}
