package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest holds the fields of a registration form. The avatar and
// cover image files arrive separately as multipart parts.
type RegisterRequest struct {
	Username string `form:"username" json:"username" validate:"required,min=3,max=30"`
	Email    string `form:"email" json:"email" validate:"required,email"`
	FullName string `form:"fullName" json:"fullName" validate:"required"`
	Password string `form:"password" json:"password" validate:"required,min=6"`
}

// LoginRequest holds credentials for authenticating a user. The identifier is
// either field: at least one of username or email must be present.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse returns the issued tokens and the account projection.
type LoginResponse struct {
	User         Profile `json:"user"`
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
}

// RefreshRequest exchanges a refresh token for a new pair. The token may also
// arrive via cookie; the handler fills this in either way.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest payload for updating the password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// UpdateProfileRequest payload for updating account details.
type UpdateProfileRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// Claims is the identity payload embedded in both token kinds. Access and
// refresh tokens carry the same claims and differ only in secret and expiry.
type Claims struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	jwt.RegisteredClaims
}
