package middleware

import (
	"errors"
	"strings"

	"github.com/vitrinhq/vitrin/internal/auth/jwt"
	"github.com/vitrinhq/vitrin/internal/i18n"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key of the validated admin claims
const ClaimsKey = "claims"

// TokenVerifier validates admin tokens
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// JWTAuthMiddleware creates a middleware that validates JWT tokens. The token
// comes from a Bearer Authorization header, or from the token query parameter
// for websocket clients that cannot set headers.
func JWTAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			i18n.AbortWithError(c, i18n.ErrUnauthorized)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) || errors.Is(err, jwt.ErrRevokedToken) {
				i18n.AbortWithError(c, i18n.ErrorSessionExpired)
				return
			}
			i18n.AbortWithError(c, i18n.ErrUnauthorized)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
