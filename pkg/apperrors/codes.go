package apperrors

// ErrorCode identifies an error class independent of its HTTP mapping.
type ErrorCode string

const (
	// System errors
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Generic business-logic codes
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// Authentication and authorization (cross-cutting)
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	CodeInvalidOTP         ErrorCode = "INVALID_OTP"
	CodeOTPExpired         ErrorCode = "OTP_EXPIRED"

	// Email delivery
	CodeEmailDeliveryFailed ErrorCode = "EMAIL_DELIVERY_FAILED"
)
