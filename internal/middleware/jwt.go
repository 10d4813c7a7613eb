package middleware

import (
	"errors"
	"net/http"
	"strings"

	"rollouthq/internal/service"
	"rollouthq/pkg/constraints"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims is the access token payload issued by the identity service.
type UserClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTMiddleware verifies HS256 bearer tokens and stores the caller as the request actor.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header missing")
			return
		}

		token, err := parser.ParseWithClaims(tokenString, &UserClaims{}, func(t *jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			msg := "Invalid access token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Access token expired"
			}
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}

		claims, ok := token.Claims.(*UserClaims)
		if !ok || claims.UserID == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token claims")
			return
		}

		actor := &service.Actor{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  claims.Role,
		}
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

// RequireAdmin must run after JWTMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := service.ActorFrom(c.Request.Context())
		if actor == nil || actor.Role != constraints.RoleAdmin {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Admin role required")
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": msg, "code": code}})
}
