package multitoken

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeSuperuserDisabled  = "SUPERUSER_LOGIN_DISABLED"
	TextCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	TextCodeInvalidCredential  = "INVALID_CREDENTIAL"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	TextCodeResetTokenNotFound = "RESET_TOKEN_NOT_FOUND"
	TextCodeResetTokenExpired  = "RESET_TOKEN_EXPIRED"
	TextCodeNoEligibleAccount  = "NO_ELIGIBLE_ACCOUNT"
	TextCodeKeyCollision       = "KEY_COLLISION"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeValidationFailed   = "VALIDATION_FAILED"
	TextCodeMalformedBody      = "MALFORMED_BODY"
	TextCodeOperationCancelled = "OPERATION_CANCELLED"
	TextCodeStoreFault         = "STORE_FAULT"
)

// MetadataField names the response field an error is reported under,
// MetadataStatus carries the status text of reset token lookups.
const (
	MetadataField  = "field"
	MetadataStatus = "status"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is returned for a bad identifier or password. Both
// cases share the same error so callers can not enumerate accounts.
var ErrInvalidCredentials = goerrors.New("Unable to log in with provided credentials.", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeBadRequest).
	WithMetadata(map[string]any{MetadataField: "non_field_errors"})

// ErrSuperuserLoginDisabled is returned when a superuser tries to log in and
// superuser login is turned off
var ErrSuperuserLoginDisabled = goerrors.New("superusers can't log in", goerrors.CategoryAuthz).
	WithTextCode(TextCodeSuperuserDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrNotAuthenticated the request carries no token credentials
var ErrNotAuthenticated = goerrors.New("authentication credentials were not provided", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredential the bearer header is malformed or the key is unknown
var ErrInvalidCredential = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken is returned by logout when the token does not exist for
// the calling identity
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenNotFound session token lookup miss
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrResetTokenNotFound reset token lookup miss
var ErrResetTokenNotFound = goerrors.New("password reset token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeResetTokenNotFound).
	WithCode(goerrors.CodeNotFound).
	WithMetadata(map[string]any{MetadataStatus: "notfound"})

// ErrResetTokenExpired the reset token exists but is past its validity window
var ErrResetTokenExpired = goerrors.New("password reset token expired", goerrors.CategoryNotFound).
	WithTextCode(TextCodeResetTokenExpired).
	WithCode(goerrors.CodeNotFound).
	WithMetadata(map[string]any{MetadataStatus: "expired"})

// ErrNoEligibleAccount no active identity that can change its password
// matches the requested email
var ErrNoEligibleAccount = goerrors.New("there is no active user associated with this e-mail address or the password can not be changed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNoEligibleAccount).
	WithCode(goerrors.CodeBadRequest).
	WithMetadata(map[string]any{MetadataField: "email"})

// ErrKeyCollision minting gave up after repeated unique key violations
var ErrKeyCollision = goerrors.New("unable to generate a unique token key", goerrors.CategoryConflict).
	WithTextCode(TextCodeKeyCollision).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString the password is empty
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest).
	WithMetadata(map[string]any{MetadataField: "password"})

// storeFault marks err as an unrecoverable persistence failure. Errors that
// already carry a category pass through untouched.
func storeFault(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeStoreFault).
		WithCode(goerrors.CodeInternal)
}

// invalidInput wraps ozzo validation errors, the field detail stays
// reachable through errors.As
func invalidInput(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest)
}

// invalidCredential wraps ErrInvalidCredential with a detail message that
// is safe to return to the client
func invalidCredential(detail string) error {
	return goerrors.Wrap(ErrInvalidCredential, goerrors.CategoryAuth, detail).
		WithTextCode(TextCodeInvalidCredential).
		WithCode(goerrors.CodeUnauthorized)
}

// ErrorMessage is the client facing message of err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
// It matches on the messages of the sqlite and postgres drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "#23505")
}
