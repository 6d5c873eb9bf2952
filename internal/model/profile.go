package model

import (
	"time"

	"github.com/lib/pq"
)

// Profile is a user's public record plus the per-request derived fields.
type Profile struct {
	ID             string         `db:"id" json:"id"`
	Email          string         `db:"email" json:"email,omitempty"`
	PasswordHashed string         `db:"password_hashed" json:"-"`
	FullName       *string        `db:"full_name" json:"full_name"`
	AvatarURL      *string        `db:"avatar_url" json:"avatar_url"`
	AvatarKey      *string        `db:"avatar_key" json:"-"`
	Bio            *string        `db:"bio" json:"bio"`
	Sports         pq.StringArray `db:"sports" json:"sports"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	// Derived, recomputed on every read.
	FollowersCount int  `db:"-" json:"followers_count"`
	FollowingCount int  `db:"-" json:"following_count"`
	PostsCount     int  `db:"-" json:"posts_count"`
	IsFollowing    bool `db:"-" json:"is_following"`
}

// DisplayName is the full name, or "" when the profile never set one.
func (p *Profile) DisplayName() string {
	if p == nil || p.FullName == nil {
		return ""
	}
	return *p.FullName
}

// Summary trims the profile to its display fields.
func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL}
}

// ProfileSummary is the snippet embedded in posts, comments, lists and notifications.
type ProfileSummary struct {
	ID          string  `db:"id" json:"id"`
	FullName    *string `db:"full_name" json:"full_name"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url"`
	IsFollowing bool    `db:"-" json:"is_following"`
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	FullName string   `json:"full_name"`
	Sports   []string `json:"sports"`
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest overwrites only the fields that are present.
type UpdateProfileRequest struct {
	FullName *string   `json:"full_name"`
	Bio      *string   `json:"bio"`
	Sports   *[]string `json:"sports"`
}

// Empty reports whether the request would change nothing.
func (r *UpdateProfileRequest) Empty() bool {
	return r.FullName == nil && r.Bio == nil && r.Sports == nil
}

// Profile constraints
const (
	MinPasswordLength = 8
	MaxFullNameLength = 80
	MaxBioLength      = 300
	MaxSports         = 10
)

var (
	ErrProfileNotFound    = newError(ErrNotFound, "profile not found")
	ErrEmailExists        = newError(ErrConflict, "email already registered")
	ErrInvalidCredentials = newError(ErrUnauthenticated, "invalid credentials")
	ErrInvalidEmail       = newError(ErrValidation, "invalid email")
	ErrPasswordTooShort   = newError(ErrValidation, "password must be at least 8 characters")
	ErrFullNameTooLong    = newError(ErrValidation, "full name too long")
	ErrBioTooLong         = newError(ErrValidation, "bio too long")
	ErrTooManySports      = newError(ErrValidation, "too many sports")
	ErrNothingToUpdate    = newError(ErrValidation, "no fields to update")
)
