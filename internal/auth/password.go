package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("invalid credentials")

func HashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

type Credential struct {
	PasswordHash string
	Role         string
}

// Directory holds the operators allowed to log in, keyed by operator id.
type Directory map[string]Credential

// unknownHash is compared against when the operator id is unknown so both
// paths cost one bcrypt comparison.
var unknownHash, _ = HashPassword("unknown-operator")

// Authenticate returns the operator's role when password matches.
func (d Directory) Authenticate(operatorID, password string) (string, error) {
	c, ok := d[operatorID]
	hash := c.PasswordHash
	if !ok {
		hash = unknownHash
	}
	if err := VerifyPassword(password, hash); err != nil || !ok {
		return "", ErrBadCredentials
	}
	return c.Role, nil
}
