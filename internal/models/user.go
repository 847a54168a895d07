package models

import "time"

// User represents an account stored in the users table. Username and email
// are persisted lowercase and trimmed; RefreshToken holds the single currently
// valid refresh token for the account, or NULL when logged out.
type User struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"fullName"`
	AvatarURL     string    `db:"avatar_url" json:"avatar"`
	CoverImageURL string    `db:"cover_image_url" json:"coverImage"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	RefreshToken  *string   `db:"refresh_token" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Profile is the account projection returned to its owner. It never carries
// the password hash or the stored refresh token.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ChannelProfile is the public projection of a channel page.
type ChannelProfile struct {
	Username      string `json:"username"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatar"`
	CoverImageURL string `json:"coverImage"`
}

// ProfileOf builds the owner projection for a user record.
func ProfileOf(u *User) Profile {
	return Profile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

// ChannelOf builds the public projection for a user record.
func ChannelOf(u *User) ChannelProfile {
	return ChannelProfile{
		Username:      u.Username,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
	}
}
