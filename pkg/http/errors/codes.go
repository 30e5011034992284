package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeInvalidOption    = "invalid_option"

	// Resource errors
	ErrCodeSessionNotFound  = "session_not_found"
	ErrCodeSessionNotReady  = "session_not_ready"
	ErrCodeSessionClosed    = "session_closed"
	ErrCodeConflict         = "conflict"
	ErrCodeSessionStartFail = "session_start_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
