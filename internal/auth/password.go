package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoAdminPassword    = errors.New("admin password or password hash is required")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Authenticator checks the single local admin account.
type Authenticator struct {
	username string
	hash     string
}

// NewAuthenticator builds an authenticator from a bcrypt hash. When hash is
// empty the plain password is hashed once at startup.
func NewAuthenticator(username, hash, password string) (*Authenticator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = RoleAdmin
	}
	if hash == "" {
		if password == "" {
			return nil, ErrNoAdminPassword
		}
		h, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &Authenticator{username: username, hash: hash}, nil
}

// Authenticate returns ErrInvalidCredentials unless both username and
// password match.
func (a *Authenticator) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	passOK := CheckPassword(password, a.hash)
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// Username returns the configured admin name.
func (a *Authenticator) Username() string {
	return a.username
}
