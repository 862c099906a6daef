package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cmarket/permalink/utils"
)

const (
	// ContextSubjectKey is the key used to store the authenticated subject in Gin context.
	ContextSubjectKey = "subject"
	// ContextRoleKey stores the token role inside Gin context.
	ContextRoleKey = "role"

	// RoleAdmin is required for every mutating endpoint on the admin surface.
	RoleAdmin = "admin"
)

// AdminRequired ensures the request carries a valid JWT with the admin role.
// Tokens are issued out-of-band by the marketplace auth service.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "invalid token")
			ctx.Abort()
			return
		}

		if claims.Role != RoleAdmin {
			utils.Error(ctx, http.StatusForbidden, 40310, "admin role required")
			ctx.Abort()
			return
		}

		ctx.Set(ContextSubjectKey, claims.Subject)
		ctx.Set(ContextRoleKey, claims.Role)
		ctx.Next()
	}
}
