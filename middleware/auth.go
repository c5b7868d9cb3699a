package middleware

import (
	"abogacia-chatbot/internal/auth"
	"abogacia-chatbot/utils"

	"github.com/gin-gonic/gin"
)

// AdminAuth requires an admin bearer token. An empty secret leaves the
// routes open, as the service runs behind a private network by default.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := auth.ValidateAdminToken(secret, tokenString)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
