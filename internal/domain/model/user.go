package model

import (
	"regexp"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	PermissionAdmin = "admin"
	PermissionJudge = "judge"
)

var usernameRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Email            *string   `json:"email,omitempty"`
	PasswordHash     string    `json:"-"` // Not exposed
	Permissions      []string  `json:"permissions"`
	RegistrationTime time.Time `json:"registration_time"`
}

func (u *User) HasPermission(perm string) bool {
	return u != nil && slices.Contains(u.Permissions, perm)
}

func (u *User) IsAdmin() bool {
	return u.HasPermission(PermissionAdmin)
}

// PublicUser is what anyone may see about an account.
type PublicUser struct {
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	RegistrationTime time.Time `json:"registration_time"`
}

// PrivateUser adds the fields visible to the account owner and admins.
type PrivateUser struct {
	ID int64 `json:"id"`
	PublicUser
	Email       *string  `json:"email,omitempty"`
	Permissions []string `json:"permissions"`
}

func (u *User) Public() PublicUser {
	return PublicUser{Username: u.Username, DisplayName: u.DisplayName, RegistrationTime: u.RegistrationTime}
}

func (u *User) Private() PrivateUser {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return PrivateUser{ID: u.ID, PublicUser: u.Public(), Email: u.Email, Permissions: perms}
}

type RegisterRequest struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Match(usernameRegexp)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.DisplayName, validation.Length(0, 64)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.EmailFormat),
	)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type AuthResponse struct {
	User         PrivateUser `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// UpdateUserRequest is a partial edit; nil fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName *string   `json:"display_name"`
	Email       *string   `json:"email"`
	Permissions *[]string `json:"permissions"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.Email, is.EmailFormat),
		validation.Field(&r.Permissions, validation.By(func(value interface{}) error {
			perms, _ := value.(*[]string)
			if perms == nil {
				return nil
			}
			return validation.Validate(*perms, validation.Each(validation.In(PermissionAdmin, PermissionJudge)))
		})),
	)
}
