package auth

import (
	"errors"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrEmailExists is returned when signing up with a registered email.
	ErrEmailExists = errors.New("auth: email already registered")
	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("auth: invalid email")
	// ErrWeakPassword is returned when the password is rejected by the identity provider.
	ErrWeakPassword = errors.New("auth: password too weak")
	// ErrUserDisabled is returned when the account has been disabled.
	ErrUserDisabled = errors.New("auth: user disabled")
	// ErrTooManyAttempts is returned when the identity provider throttles the account.
	ErrTooManyAttempts = errors.New("auth: too many attempts")
	// ErrTokenInvalid signals an ID token that failed verification.
	ErrTokenInvalid = errors.New("auth: id token invalid")
	// ErrUnavailable is returned when the identity provider could not be reached.
	ErrUnavailable = errors.New("auth: identity service unavailable")
)

const minPasswordLength = 6

// Error pairs a failure with a message safe to show the user.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage returns the text shown inline for an auth failure.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrEmailExists):
		return "An account with this email already exists."
	case errors.Is(err, ErrInvalidEmail):
		return "Please enter a valid email address."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 6 characters."
	case errors.Is(err, ErrUserDisabled):
		return "This account has been disabled."
	case errors.Is(err, ErrTooManyAttempts):
		return "Too many attempts. Please try again later."
	case errors.Is(err, ErrTokenInvalid):
		return "Your session has expired. Please log in again."
	default:
		return "Authentication is unavailable right now. Please try again."
	}
}

func wrap(kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// classifyAdminError maps Firebase Admin SDK failures onto the sentinel kinds.
func classifyAdminError(err error) error {
	switch {
	case err == nil:
		return nil
	case firebaseauth.IsEmailAlreadyExists(err):
		return wrap(ErrEmailExists, err)
	case firebaseauth.IsUserNotFound(err):
		return wrap(ErrInvalidCredentials, err)
	case firebaseauth.IsIDTokenInvalid(err), firebaseauth.IsIDTokenExpired(err), firebaseauth.IsIDTokenRevoked(err):
		return wrap(ErrTokenInvalid, err)
	case firebaseauth.IsUserDisabled(err):
		return wrap(ErrUserDisabled, err)
	}
	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "INVALID_EMAIL"), strings.Contains(msg, "EMAIL MUST BE"):
		return wrap(ErrInvalidEmail, err)
	case strings.Contains(msg, "WEAK_PASSWORD"), strings.Contains(msg, "PASSWORD MUST BE"):
		return wrap(ErrWeakPassword, err)
	}
	return wrap(ErrUnavailable, err)
}

// classifyIdentityToolkitError maps REST sign-in failures onto the sentinel kinds.
func classifyIdentityToolkitError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return wrap(ErrUnavailable, err)
	}
	message := strings.ToUpper(apiErr.Message)
	for _, item := range apiErr.Errors {
		message += " " + strings.ToUpper(item.Message)
	}
	switch {
	case strings.Contains(message, "EMAIL_NOT_FOUND"),
		strings.Contains(message, "INVALID_PASSWORD"),
		strings.Contains(message, "INVALID_LOGIN_CREDENTIALS"):
		return wrap(ErrInvalidCredentials, err)
	case strings.Contains(message, "INVALID_EMAIL"):
		return wrap(ErrInvalidEmail, err)
	case strings.Contains(message, "USER_DISABLED"):
		return wrap(ErrUserDisabled, err)
	case strings.Contains(message, "TOO_MANY_ATTEMPTS"):
		return wrap(ErrTooManyAttempts, err)
	}
	if apiErr.Code >= 500 {
		return wrap(ErrUnavailable, err)
	}
	return wrap(ErrInvalidCredentials, err)
}
