package identity

import (
	"errors"
	"fmt"
)

// Error codes reported by the identity providers.
const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeMissingName       = "auth/missing-name"
	CodePopupClosed       = "auth/popup-closed-by-user"
	CodePopupBlocked      = "auth/popup-blocked"
	CodeInternal          = "auth/internal-error"
)

// AuthError is a sign-in or sign-up failure whose Message is shown to the
// user unchanged.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func newAuthError(code, msg string) *AuthError {
	return &AuthError{Code: code, Message: msg}
}

func internalError(op string, err error) *AuthError {
	return &AuthError{Code: CodeInternal, Message: fmt.Sprintf("%s failed. Please try again.", op), Err: err}
}

// AuthErrorCode returns the code of an AuthError in err's chain, or "".
func AuthErrorCode(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrClosed       = errors.New("identity adapter closed")
)
