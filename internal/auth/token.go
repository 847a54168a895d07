package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/vidtube-api/internal/models"
	"github.com/noah-isme/vidtube-api/pkg/config"
)

// Validation failures returned by the token manager.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
)

// TokenManager mints and validates the two token kinds. Both are HS256 JWTs
// over the same claims; they differ in secret and lifetime, so a token issued
// for one purpose never validates for the other.
type TokenManager struct {
	accessSecret  []byte
	accessExpiry  time.Duration
	refreshSecret []byte
	refreshExpiry time.Duration
}

// NewTokenManager validates the configuration and returns a manager.
func NewTokenManager(cfg config.TokenConfig) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must be configured")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return nil, errors.New("token expiries must be positive")
	}

	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		accessExpiry:  cfg.AccessExpiry,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshExpiry: cfg.RefreshExpiry,
	}, nil
}

// IssueAccessToken mints a short-lived access token for the account.
func (m *TokenManager) IssueAccessToken(user *models.User) (string, error) {
	return m.issue(user, m.accessSecret, m.accessExpiry)
}

// IssueRefreshToken mints a long-lived refresh token for the account. The
// caller persists the result so rotation can compare it later.
func (m *TokenManager) IssueRefreshToken(user *models.User) (string, error) {
	return m.issue(user, m.refreshSecret, m.refreshExpiry)
}

// ValidateAccess verifies an access token and returns its claims.
func (m *TokenManager) ValidateAccess(token string) (*models.Claims, error) {
	return validate(token, m.accessSecret)
}

// ValidateRefresh verifies a refresh token and returns its claims.
func (m *TokenManager) ValidateRefresh(token string) (*models.Claims, error) {
	return validate(token, m.refreshSecret)
}

func (m *TokenManager) issue(user *models.User, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &models.Claims{
		AccountID: user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FullName:  user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique ID so two tokens minted in the same second still
			// differ; rotation compares raw token strings.
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func validate(tokenString string, secret []byte) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenSignature
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenSignature
	}

	return claims, nil
}
