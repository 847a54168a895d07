package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vidtube-api/internal/models"
	"github.com/noah-isme/vidtube-api/internal/service"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
	"github.com/noah-isme/vidtube-api/pkg/response"
)

// UserHandler exposes the profile endpoints of the current user.
type UserHandler struct {
	service       *service.UserService
	maxUploadSize int64
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService, maxUploadSize int64) *UserHandler {
	return &UserHandler{service: svc, maxUploadSize: maxUploadSize}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.service.Get(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile, "current user fetched successfully")
}

// UpdateProfile handles PATCH /users/me.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), claims.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile, "profile updated successfully")
}

// UpdateAvatar handles PATCH /users/me/avatar.
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", h.service.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /users/me/cover-image.
func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", h.service.UpdateCoverImage)
}

func (h *UserHandler) updateImage(c *gin.Context, field string, update func(context.Context, string, service.UploadedFile) (*models.Profile, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	header, err := c.FormFile(field)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, field+" file is required"))
		return
	}
	if h.maxUploadSize > 0 && header.Size > h.maxUploadSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "uploaded file is too large"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	profile, err := update(c.Request.Context(), claims.AccountID, service.UploadedFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile, field+" updated successfully")
}
