// Package auth consumes identity at the engine boundary. Registration and
// token issuance belong to the account service; this middleware only
// verifies the bearer token and the session it names.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pulseapp/pulse-engine/internal/app"
)

const contextUserKey = "auth_user_id"

// Middleware verifies the Authorization bearer token (HMAC only) and checks
// that the session key for the embedded user still exists in Redis. On
// success the user id is placed in the gin context; anything else aborts
// with 401.
func Middleware(appCtx *app.AppContext) gin.HandlerFunc {
	secret := []byte(appCtx.Config.Auth.JWTSecret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c)
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abort(c)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c)
			return
		}
		raw, ok := claims["userId"].(float64)
		if !ok || raw <= 0 {
			abort(c)
			return
		}
		userID := uint64(raw)

		// token may outlive a revoked session
		exists, err := appCtx.RedisCache.Exists(c.Request.Context(), appCtx.RedisCache.KeyForSession(userID))
		if err != nil || !exists {
			abort(c)
			return
		}

		c.Set(contextUserKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware, 0 if absent.
func UserID(c *gin.Context) uint64 {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}

func abort(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
}
