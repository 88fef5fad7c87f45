package blog

import (
	"crypto/rand"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

var hashCost = passwordHashCost()

// HashPassword returns the bcrypt digest of password
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", goerrors.NewValidation("invalid password",
			goerrors.FieldError{Field: "password", Message: "must be at most 72 bytes"},
		)
	}
	return string(h), err
}

// ComparePasswordAndHash checks password against a stored digest
func ComparePasswordAndHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatchedHashAndPassword
	default:
		return err
	}
}

// VerifyPassword reports whether password matches hash. Malformed
// or truncated hashes are reported as a mismatch.
func VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return ComparePasswordAndHash(password, hash) == nil
}

// RandomPasswordHash hashes a throwaway secret, for accounts that
// must exist but cannot log in until a password is set.
func RandomPasswordHash() string {
	h, err := HashPassword(rand.Text())
	if err != nil {
		panic(err)
	}
	return h
}

type bcryptAuthenticator struct{}

func (bcryptAuthenticator) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (bcryptAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// DefaultPasswordAuthenticator is the bcrypt backed authenticator
var DefaultPasswordAuthenticator PasswordAuthenticator = bcryptAuthenticator{}
