package apperrors

import "net/http"

/*
Predeclared errors and factories for the credential domain. Services return
these; the HTTP layer maps them through HandleError.
*/

// ErrEmailAlreadyExists - another account already owns this email (409).
var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"An account with this email already exists",
	http.StatusConflict,
)

// ErrInvalidCredentials covers both unknown email and wrong password.
// One message for both cases so login cannot be used to enumerate accounts.
var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

// ErrInvalidUserRole - persisted role is outside the allowed set.
var ErrInvalidUserRole = New(
	CodeInvalidOperation,
	"auth",
	"Invalid user role",
	http.StatusBadRequest,
)

// ErrInvalidOrExpiredToken - verification token is absent, wrong or past
// expiry. Deliberately one error for all three cases.
var ErrInvalidOrExpiredToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired verification token",
	http.StatusUnauthorized,
)

// ErrAlreadyVerified - resend requested for a verified account.
var ErrAlreadyVerified = New(
	CodeConflict,
	"auth",
	"Account is already verified",
	http.StatusConflict,
)

// ErrAccountNotFound - no account for the given email or id (404).
var ErrAccountNotFound = New(
	CodeNotFound,
	"auth",
	"Account not found",
	http.StatusNotFound,
)

// ErrInvalidOTP - submitted code does not match the stored one.
var ErrInvalidOTP = New(
	CodeInvalidOTP,
	"auth",
	"Invalid OTP",
	http.StatusUnauthorized,
)

// ErrOTPExpired - code matched but its validity window has passed.
var ErrOTPExpired = New(
	CodeOTPExpired,
	"auth",
	"OTP has expired",
	http.StatusUnauthorized,
)

// ErrIncorrectCurrentPassword - change-password with a wrong current password.
var ErrIncorrectCurrentPassword = New(
	CodeInvalidCredentials,
	"auth",
	"Current password is incorrect",
	http.StatusUnauthorized,
)

// ErrWeakPassword - password below the strength floor.
var ErrWeakPassword = New(
	CodeValidationFailed,
	"validation",
	"Password must be at least 8 characters long",
	http.StatusBadRequest,
)

// EmailDeliveryError wraps a notifier failure. The message is the
// user-facing classification of the delivery failure kind.
func EmailDeliveryError(err error, message string) *AppError {
	return Wrap(err, CodeEmailDeliveryFailed, "email", message, http.StatusInternalServerError)
}
