package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vidtube-api/internal/auth"
	"github.com/noah-isme/vidtube-api/internal/models"
	"github.com/noah-isme/vidtube-api/internal/repository"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
)

type credentialStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	UpdateRefreshToken(ctx context.Context, id string, token *string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

type tokenIssuer interface {
	IssueAccessToken(user *models.User) (string, error)
	IssueRefreshToken(user *models.User) (string, error)
	ValidateRefresh(token string) (*models.Claims, error)
}

// AuthService orchestrates the session lifecycle: registration, login,
// logout, refresh rotation and password changes. At most one refresh token is
// valid per account; every mutation of the stored token is a single atomic
// write, which is the sole revocation point for outstanding sessions.
type AuthService struct {
	store     credentialStore
	tokens    tokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(store credentialStore, tokens tokenIssuer, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{store: store, tokens: tokens, validator: validate, logger: logger}
}

// Register creates a new account. Username and email are normalised to
// lowercase; duplicates surface as a conflict. The media URLs were produced by
// the upload step that precedes account creation.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, avatarURL, coverImageURL string) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "all fields are required")
	}

	username := normaliseIdentifier(req.Username)
	email := normaliseIdentifier(req.Email)

	if _, err := s.store.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username or email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account uniqueness")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(req.FullName),
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		PasswordHash:  passwordHash,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username or email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	profile := models.ProfileOf(user)
	return &profile, nil
}

// Login authenticates by username or email and issues a fresh token pair. The
// new refresh token overwrites any previously stored one, revoking earlier
// sessions.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Username == "" && req.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username or email is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "password is required")
	}

	user, err := s.store.FindByUsernameOrEmail(ctx, normaliseIdentifier(req.Username), normaliseIdentifier(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAccountNotFound, "account does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid account credentials")
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{
		User:         models.ProfileOf(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout clears the stored refresh token, immediately invalidating any
// refresh token still held by a client. Logging out an already-logged-out
// account is not an error.
func (s *AuthService) Logout(ctx context.Context, accountID string) error {
	if err := s.store.UpdateRefreshToken(ctx, accountID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear refresh token")
	}
	return nil
}

// RefreshSession exchanges a valid refresh token for a new pair. The
// presented token must verify against the refresh secret, be unexpired, and
// byte-match the stored value; rotation then makes the presented token
// unusable even though it never expired.
func (s *AuthService) RefreshSession(ctx context.Context, presented string) (*models.TokenPair, error) {
	if presented == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is required")
	}

	claims, err := s.tokens.ValidateRefresh(presented)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "refresh token expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid refresh token")
	}

	user, err := s.store.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	// Covers already-rotated, already-logged-out, and previous-generation
	// tokens that still carry a valid signature.
	if user.RefreshToken == nil || *user.RefreshToken != presented {
		return nil, appErrors.Clone(appErrors.ErrTokenStale, "refresh token has been superseded")
	}

	return s.issueSession(ctx, user)
}

// ChangePassword verifies the old password, re-hashes the new one, and clears
// the stored refresh token so existing sessions must authenticate again.
func (s *AuthService) ChangePassword(ctx context.Context, accountID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAccountNotFound, "account does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if !auth.VerifyPassword(req.OldPassword, user.PasswordHash) {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "old password does not match")
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.store.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.store.UpdateRefreshToken(ctx, accountID, nil); err != nil {
		s.logger.Warn("failed to revoke refresh token after password change",
			zap.String("account_id", accountID), zap.Error(err))
	}

	return nil
}

// issueSession mints a token pair and persists the refresh half. Nothing is
// persisted when token issuance fails, so a failed login or refresh leaves no
// partial state behind.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue access token")
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue refresh token")
	}

	if err := s.store.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func normaliseIdentifier(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
