package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vidtube-api/internal/middleware"
	"github.com/noah-isme/vidtube-api/internal/models"
	"github.com/noah-isme/vidtube-api/pkg/config"
)

// RefreshTokenCookie is the cookie the refresh token is delivered in.
const RefreshTokenCookie = "refreshToken"

// CookieWriter emits the token cookies. Both cookies are httpOnly; the
// refresh cookie is additionally always transport-secured regardless of the
// configured flag.
type CookieWriter struct {
	domain        string
	secure        bool
	accessMaxAge  int
	refreshMaxAge int
}

// NewCookieWriter builds a writer from the cookie and token configuration.
func NewCookieWriter(cookieCfg config.CookieConfig, tokenCfg config.TokenConfig) *CookieWriter {
	return &CookieWriter{
		domain:        cookieCfg.Domain,
		secure:        cookieCfg.Secure,
		accessMaxAge:  int(tokenCfg.AccessExpiry.Seconds()),
		refreshMaxAge: int(tokenCfg.RefreshExpiry.Seconds()),
	}
}

// SetSession writes both token cookies.
func (w *CookieWriter) SetSession(c *gin.Context, pair models.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, w.accessMaxAge, "/", w.domain, w.secure, true)
	c.SetCookie(RefreshTokenCookie, pair.RefreshToken, w.refreshMaxAge, "/", w.domain, true, true)
}

// Clear instructs the client to discard both token cookies.
func (w *CookieWriter) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", w.domain, w.secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", w.domain, true, true)
}
