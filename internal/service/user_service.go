package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vidtube-api/internal/models"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
	"github.com/noah-isme/vidtube-api/pkg/media"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) error
	UpdateAvatarURL(ctx context.Context, id, url string) error
	UpdateCoverImageURL(ctx context.Context, id, url string) error
}

// UploadedFile describes one multipart file handed to the service layer.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// UserService handles account profile workflows, proxying image uploads to
// the media store before persisting their URLs.
type UserService struct {
	store     userStore
	media     media.Store
	channels  *ChannelService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. The channel service is
// optional and only used to invalidate cached channel profiles.
func NewUserService(store userStore, mediaStore media.Store, channels *ChannelService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{store: store, media: mediaStore, channels: channels, validator: validate, logger: logger}
}

// Get returns the owner projection for an account.
func (s *UserService) Get(ctx context.Context, id string) (*models.Profile, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := models.ProfileOf(user)
	return &profile, nil
}

// UpdateProfile updates full name and email, rejecting an email already in
// use by another account.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != user.Email {
		if other, err := s.store.FindByUsernameOrEmail(ctx, "", email); err == nil && other.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
	}

	fullName := strings.TrimSpace(req.FullName)
	if err := s.store.UpdateProfile(ctx, id, fullName, email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	user.FullName = fullName
	user.Email = email
	s.invalidateChannel(ctx, user.Username)

	profile := models.ProfileOf(user)
	return &profile, nil
}

// UpdateAvatar uploads the new avatar to the media store and persists its URL.
func (s *UserService) UpdateAvatar(ctx context.Context, id string, file UploadedFile) (*models.Profile, error) {
	return s.updateImage(ctx, id, file, "avatars", s.store.UpdateAvatarURL, func(u *models.User, url string) {
		u.AvatarURL = url
	})
}

// UpdateCoverImage uploads the new cover image and persists its URL.
func (s *UserService) UpdateCoverImage(ctx context.Context, id string, file UploadedFile) (*models.Profile, error) {
	return s.updateImage(ctx, id, file, "covers", s.store.UpdateCoverImageURL, func(u *models.User, url string) {
		u.CoverImageURL = url
	})
}

func (s *UserService) updateImage(ctx context.Context, id string, file UploadedFile, kind string, persist func(context.Context, string, string) error, apply func(*models.User, string)) (*models.Profile, error) {
	if file.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image file is required")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	key := media.ObjectKey(kind, file.Filename)
	url, err := s.media.Upload(ctx, key, file.ContentType, file.Reader, file.Size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload image")
	}

	if err := persist(ctx, id, url); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image url")
	}

	apply(user, url)
	s.invalidateChannel(ctx, user.Username)

	profile := models.ProfileOf(user)
	return &profile, nil
}

func (s *UserService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAccountNotFound, "account does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

func (s *UserService) invalidateChannel(ctx context.Context, username string) {
	if s.channels == nil {
		return
	}
	if err := s.channels.Invalidate(ctx, username); err != nil {
		s.logger.Warn("failed to invalidate channel cache", zap.String("username", username), zap.Error(err))
	}
}
