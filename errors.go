package blog

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

var (
	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = goerrors.New("empty string is not allowed", goerrors.CategoryValidation).
				WithCode(http.StatusBadRequest).
				WithTextCode("EMPTY_STRING")

	// ErrMismatchedHashAndPassword password does not match stored digest
	ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
					WithCode(http.StatusUnauthorized).
					WithTextCode("PASSWORD_MISMATCH")

	// ErrTokenExpired the token exp is in the past
	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode("TOKEN_EXPIRED")

	// ErrTokenMalformed the token could not be parsed or its signature is invalid
	ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode("TOKEN_MALFORMED")

	// ErrUnauthenticated no valid principal could be resolved
	ErrUnauthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode("UNAUTHENTICATED")

	// ErrInvalidCredentials login with unknown email or wrong password
	ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode("INVALID_CREDENTIALS")

	// ErrForbidden the principal role rank is too low
	ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode("FORBIDDEN")

	// ErrInvalidID path identifier is not a valid UUID
	ErrInvalidID = goerrors.New("invalid identifier", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode("INVALID_ID")

	// ErrSelfDeactivation an admin tried to deactivate their own account
	ErrSelfDeactivation = goerrors.New("cannot deactivate your own account", goerrors.CategoryConflict).
				WithCode(http.StatusConflict).
				WithTextCode("SELF_DEACTIVATION")

	// ErrTooManyRequests rate limit exceeded
	ErrTooManyRequests = goerrors.New("too many requests", goerrors.CategoryRateLimit).
				WithCode(http.StatusTooManyRequests).
				WithTextCode("RATE_LIMITED")
)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsNotFound reports store misses and not found errors
func IsNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}

// HTTPStatus maps an error to the status code of its category. The
// outermost go-errors value wins so wrapping reclassifies.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError
	}

	if rich.Code >= 400 && rich.Code < 600 {
		return rich.Code
	}

	switch rich.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound, repository.CategoryDatabaseNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict, repository.CategoryDatabaseDuplicate:
		return http.StatusConflict
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, repository.CategoryDatabaseConstraint:
		return http.StatusBadRequest
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

// Categorize returns the public category of an error, falling back
// to internal for anything that is not a go-errors value
func Categorize(err error) goerrors.Category {
	switch HTTPStatus(err) {
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return goerrors.CategoryValidation
	case http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case http.StatusServiceUnavailable:
		return goerrors.CategoryExternal
	}
	return goerrors.CategoryInternal
}

// ErrSlugExhausted no free slug suffix was found
var ErrSlugExhausted = goerrors.New("could not allocate a unique slug", goerrors.CategoryConflict).
	WithCode(http.StatusConflict).
	WithTextCode("SLUG_EXHAUSTED")

// IsDuplicate reports unique violations and conflicts
func IsDuplicate(err error) bool {
	return repository.IsDuplicatedKey(err) || goerrors.IsCategory(err, goerrors.CategoryConflict)
}

// resourceNotFound reclassifies a store miss as a 404 carrying the
// resource name, e.g. POST_NOT_FOUND
func resourceNotFound(err error, resource string) error {
	if !IsNotFound(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryNotFound, resource+" not found").
		WithCode(http.StatusNotFound).
		WithTextCode(strings.ToUpper(resource) + "_NOT_FOUND")
}
