package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vidtube-api/internal/models"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
	"github.com/noah-isme/vidtube-api/pkg/response"
)

// ContextUserKey is the gin context key storing token claims.
const ContextUserKey = "currentUser"

// AccessTokenCookie is the cookie the access token is also delivered in.
const AccessTokenCookie = "accessToken"

// AccessValidator verifies an access token and returns its claims.
type AccessValidator interface {
	ValidateAccess(token string) (*models.Claims, error)
}

// Auth protects routes by requiring a valid access token, either as a Bearer
// header or as the access-token cookie.
func Auth(tokens AccessValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "access token is required"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateAccess(tokenString)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid access token"))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
