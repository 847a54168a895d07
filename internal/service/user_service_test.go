package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vidtube-api/internal/models"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
)

type fakeUserStore struct {
	users map[string]*models.User
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, id, fullName, email string) error {
	if u, ok := f.users[id]; ok {
		u.FullName = fullName
		u.Email = email
	}
	return nil
}

func (f *fakeUserStore) UpdateAvatarURL(ctx context.Context, id, url string) error {
	if u, ok := f.users[id]; ok {
		u.AvatarURL = url
	}
	return nil
}

func (f *fakeUserStore) UpdateCoverImageURL(ctx context.Context, id, url string) error {
	if u, ok := f.users[id]; ok {
		u.CoverImageURL = url
	}
	return nil
}

type fakeMediaStore struct {
	uploads map[string][]byte
}

func (f *fakeMediaStore) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.uploads[key] = data
	return "https://media.test/" + key, nil
}

func (f *fakeMediaStore) Delete(ctx context.Context, key string) error {
	delete(f.uploads, key)
	return nil
}

func newUserFixture() (*fakeUserStore, *fakeMediaStore, *UserService) {
	store := &fakeUserStore{users: map[string]*models.User{
		"acc-1": {ID: "acc-1", Username: "alice", Email: "a@x.com", FullName: "Alice Example"},
		"acc-2": {ID: "acc-2", Username: "bob", Email: "b@x.com", FullName: "Bob Example"},
	}}
	mediaStore := &fakeMediaStore{}
	svc := NewUserService(store, mediaStore, nil, validator.New(), zap.NewNop())
	return store, mediaStore, svc
}

func TestUserServiceGet(t *testing.T) {
	_, _, svc := newUserFixture()

	profile, err := svc.Get(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateProfile(t *testing.T) {
	store, _, svc := newUserFixture()

	profile, err := svc.UpdateProfile(context.Background(), "acc-1", models.UpdateProfileRequest{
		FullName: "Alice Updated",
		Email:    "Alice@X.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Updated", profile.FullName)
	assert.Equal(t, "alice@x.com", profile.Email)
	assert.Equal(t, "alice@x.com", store.users["acc-1"].Email)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	_, _, svc := newUserFixture()

	_, err := svc.UpdateProfile(context.Background(), "acc-1", models.UpdateProfileRequest{
		FullName: "Alice Example",
		Email:    "b@x.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateAvatar(t *testing.T) {
	store, mediaStore, svc := newUserFixture()

	profile, err := svc.UpdateAvatar(context.Background(), "acc-1", UploadedFile{
		Filename:    "avatar.png",
		ContentType: "image/png",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	})
	require.NoError(t, err)
	assert.Contains(t, profile.AvatarURL, "https://media.test/avatars/")
	assert.Equal(t, profile.AvatarURL, store.users["acc-1"].AvatarURL)
	assert.Len(t, mediaStore.uploads, 1)
}

func TestUpdateCoverImage(t *testing.T) {
	store, _, svc := newUserFixture()

	profile, err := svc.UpdateCoverImage(context.Background(), "acc-1", UploadedFile{
		Filename:    "cover.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	})
	require.NoError(t, err)
	assert.Contains(t, profile.CoverImageURL, "https://media.test/covers/")
	assert.Equal(t, profile.CoverImageURL, store.users["acc-1"].CoverImageURL)
}

func TestUpdateAvatarRequiresFile(t *testing.T) {
	_, _, svc := newUserFixture()

	_, err := svc.UpdateAvatar(context.Background(), "acc-1", UploadedFile{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
