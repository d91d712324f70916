package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials rejects a login with an unknown user or wrong
// password. Both cases look the same to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Roles, from most to least privileged.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

var roleRank = map[string]int{
	RoleAdmin:    3,
	RoleOperator: 2,
	RoleViewer:   1,
}

// RoleAtLeast reports whether role meets the required privilege level.
func RoleAtLeast(role, required string) bool {
	return roleRank[role] >= roleRank[required]
}

// User is one configured login identity. Passwords are stored as bcrypt
// hashes in the configuration, never in plaintext.
type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
	Name         string `mapstructure:"name"`
}

// Authenticate checks a username and password against the configured users.
func Authenticate(users []User, username, password string) (*User, error) {
	for i := range users {
		if users[i].Username != username {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return &users[i], nil
	}
	return nil, ErrInvalidCredentials
}

// HashPassword produces a bcrypt hash for configuration seeding.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
