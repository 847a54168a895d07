package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vidtube-api/internal/models"
	"github.com/noah-isme/vidtube-api/internal/service"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
	"github.com/noah-isme/vidtube-api/pkg/media"
	"github.com/noah-isme/vidtube-api/pkg/response"
)

// AuthHandler wires the session endpoints to the auth service. Registration
// proxies the avatar and cover image to the media store before the account is
// created, mirroring the upload-then-create flow of the platform.
type AuthHandler struct {
	service       *service.AuthService
	media         media.Store
	cookies       *CookieWriter
	maxUploadSize int64
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, mediaStore media.Store, cookies *CookieWriter, maxUploadSize int64) *AuthHandler {
	return &AuthHandler{service: svc, media: mediaStore, cookies: cookies, maxUploadSize: maxUploadSize}
}

// Register handles POST /users/register (multipart form).
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "all fields are required"))
		return
	}

	avatarFile, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "avatar file is required"))
		return
	}

	avatarURL, err := h.uploadFormFile(c.Request.Context(), "avatars", avatarFile)
	if err != nil {
		response.Error(c, err)
		return
	}

	coverImageURL := ""
	if coverFile, err := c.FormFile("coverImage"); err == nil {
		coverImageURL, err = h.uploadFormFile(c.Request.Context(), "covers", coverFile)
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	profile, err := h.service.Register(c.Request.Context(), req, avatarURL, coverImageURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, profile, "user registered successfully")
}

// Login handles POST /users/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, models.TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
	response.OK(c, res, "user logged in successfully")
}

// Logout handles POST /users/logout. Requires authentication; idempotent.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(c.Request.Context(), claims.AccountID); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	response.OK(c, nil, "user logged out successfully")
}

// Refresh handles POST /users/refresh-token. The token may arrive as a cookie
// or in the JSON body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, _ := c.Cookie(RefreshTokenCookie)
	if presented == "" {
		var req models.RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, err := h.service.RefreshSession(c.Request.Context(), presented)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, *pair)
	response.OK(c, pair, "access token refreshed")
}

// ChangePassword handles POST /users/change-password for the current user.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.AccountID, req); err != nil {
		response.Error(c, err)
		return
	}

	// Sessions are revoked on password change, so drop the cookies too.
	h.cookies.Clear(c)
	response.OK(c, nil, "password changed successfully")
}

func (h *AuthHandler) uploadFormFile(ctx context.Context, kind string, header *multipart.FileHeader) (string, error) {
	if h.maxUploadSize > 0 && header.Size > h.maxUploadSize {
		return "", appErrors.Clone(appErrors.ErrValidation, "uploaded file is too large")
	}

	file, err := header.Open()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file")
	}
	defer file.Close() //nolint:errcheck

	key := media.ObjectKey(kind, header.Filename)
	url, err := h.media.Upload(ctx, key, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload file")
	}
	return url, nil
}
