package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vidtube-api/internal/auth"
	"github.com/noah-isme/vidtube-api/internal/models"
	"github.com/noah-isme/vidtube-api/pkg/config"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
)

type fakeCredentialStore struct {
	users            map[string]*models.User
	createErr        error
	updateRefreshErr error
}

func newFakeCredentialStore(users ...*models.User) *fakeCredentialStore {
	store := &fakeCredentialStore{users: make(map[string]*models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (f *fakeCredentialStore) Create(ctx context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if user.ID == "" {
		user.ID = "generated-id"
	}
	user.CreatedAt = time.Now().UTC()
	f.users[user.ID] = user
	return nil
}

func (f *fakeCredentialStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCredentialStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCredentialStore) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	if f.updateRefreshErr != nil {
		return f.updateRefreshErr
	}
	if u, ok := f.users[id]; ok {
		u.RefreshToken = token
	}
	return nil
}

func (f *fakeCredentialStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func newTestTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	mgr, err := auth.NewTokenManager(config.TokenConfig{
		AccessSecret:  "access_secret",
		AccessExpiry:  time.Minute,
		RefreshSecret: "refresh_secret",
		RefreshExpiry: time.Hour,
	})
	require.NoError(t, err)
	return mgr
}

func seededUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &models.User{
		ID:           "acc-1",
		Username:     "alice",
		Email:        "a@x.com",
		FullName:     "Alice Example",
		PasswordHash: hash,
	}
}

func newAuthService(store *fakeCredentialStore, tokens tokenIssuer) *AuthService {
	return NewAuthService(store, tokens, validator.New(), zap.NewNop())
}

func TestLoginByUsername(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "alice", res.User.Username)

	// The issued refresh token is the one persisted on the account.
	require.NotNil(t, store.users["acc-1"].RefreshToken)
	assert.Equal(t, res.RefreshToken, *store.users["acc-1"].RefreshToken)
}

func TestLoginByEmailCaseInsensitive(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "  A@X.COM ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.User.Email)
}

func TestLoginRequiresIdentifier(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.Login(context.Background(), models.LoginRequest{Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownAccount(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountNotFound.Code, appErrors.FromError(err).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginOverwritesPreviousSession(t *testing.T) {
	user := seededUser(t, "secret1")
	previous := "previous-token"
	user.RefreshToken = &previous
	store := newFakeCredentialStore(user)
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEqual(t, previous, *store.users["acc-1"].RefreshToken)
	assert.Equal(t, res.RefreshToken, *store.users["acc-1"].RefreshToken)
}

func TestRefreshRotatesExactlyOnce(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	pair, err := svc.RefreshSession(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *store.users["acc-1"].RefreshToken)

	// The superseded token still carries a valid signature but no longer
	// matches the stored value.
	_, err = svc.RefreshSession(context.Background(), res.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenStale.Code, appErrors.FromError(err).Code)
}

func TestRefreshAfterLogout(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "acc-1"))
	assert.Nil(t, store.users["acc-1"].RefreshToken)

	_, err = svc.RefreshSession(context.Background(), res.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenStale.Code, appErrors.FromError(err).Code)
}

func TestLogoutIdempotent(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	require.NoError(t, svc.Logout(context.Background(), "acc-1"))
	require.NoError(t, svc.Logout(context.Background(), "acc-1"))
	require.NoError(t, svc.Logout(context.Background(), "never-logged-in"))
}

func TestRefreshRejectsMissingToken(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.RefreshSession(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	tokens := newTestTokenManager(t)
	svc := newAuthService(store, tokens)

	// A token signed under the access secret must not pass refresh
	// validation.
	accessToken, err := tokens.IssueAccessToken(store.users["acc-1"])
	require.NoError(t, err)

	_, err = svc.RefreshSession(context.Background(), accessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	expiring, err := auth.NewTokenManager(config.TokenConfig{
		AccessSecret:  "access_secret",
		AccessExpiry:  time.Minute,
		RefreshSecret: "refresh_secret",
		RefreshExpiry: time.Millisecond,
	})
	require.NoError(t, err)
	svc := newAuthService(store, expiring)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.RefreshSession(context.Background(), res.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsDeletedAccount(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	delete(store.users, "acc-1")

	_, err = svc.RefreshSession(context.Background(), res.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshFailureLeavesStoredTokenIntact(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	store.updateRefreshErr = errors.New("store down")
	_, err = svc.RefreshSession(context.Background(), res.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	// The failed rotation committed nothing, so the original token still
	// matches once the store recovers.
	store.updateRefreshErr = nil
	_, err = svc.RefreshSession(context.Background(), res.RefreshToken)
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	user := seededUser(t, "secret1")
	oldHash := user.PasswordHash
	store := newFakeCredentialStore(user)
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), "acc-1", models.ChangePasswordRequest{
		OldPassword: "secret1",
		NewPassword: "secret2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, store.users["acc-1"].PasswordHash)
	assert.True(t, auth.VerifyPassword("secret2", store.users["acc-1"].PasswordHash))

	// The session is revoked along with the old password.
	assert.Nil(t, store.users["acc-1"].RefreshToken)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	err := svc.ChangePassword(context.Background(), "acc-1", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "secret2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestRegister(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newAuthService(store, newTestTokenManager(t))

	profile, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "  Alice ",
		Email:    "A@X.com",
		FullName: "Alice Example",
		Password: "secret1",
	}, "https://media.test/avatars/a.png", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "a@x.com", profile.Email)
	assert.Equal(t, "https://media.test/avatars/a.png", profile.AvatarURL)

	created := store.users[profile.ID]
	require.NotNil(t, created)
	assert.NotEqual(t, "secret1", created.PasswordHash)
	assert.True(t, auth.VerifyPassword("secret1", created.PasswordHash))
	assert.Nil(t, created.RefreshToken)
}

func TestRegisterDuplicate(t *testing.T) {
	store := newFakeCredentialStore(seededUser(t, "secret1"))
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "alice",
		Email:    "other@x.com",
		FullName: "Another Alice",
		Password: "secret1",
	}, "https://media.test/avatars/a.png", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterMissingFields(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newAuthService(store, newTestTokenManager(t))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "alice",
	}, "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
