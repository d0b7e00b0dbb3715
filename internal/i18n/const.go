package i18n

// Common errors
var (
	ErrUnauthorized   = NewErrorWithCode("ErrorUnauthorized", ErrorUnauthorized)
	ErrBadRequest     = NewErrorWithCode("ErrorBadRequest", ErrorBadRequest)
	ErrInternalServer = NewErrorWithCode("ErrorInternalServer", ErrorInternalServer)
)

// Admin related errors
var (
	ErrorInvalidCredentials = NewErrorWithCode("ErrorInvalidCredentials", ErrorUnauthorized)
	ErrorSessionExpired     = NewErrorWithCode("ErrorSessionExpired", ErrorUnauthorized)
	ErrorAdminDisabled      = NewErrorWithCode("ErrorAdminDisabled", ErrorServiceUnavailable)
)

// Visitor related errors
var (
	ErrorInvalidSessionID     = NewErrorWithCode("ErrorInvalidSessionID", ErrorBadRequest)
	ErrorVisitorNotFound      = NewErrorWithCode("ErrorVisitorNotFound", ErrorNotFound)
	ErrorHeartbeatFailed      = NewErrorWithCode("ErrorHeartbeatFailed", ErrorServiceUnavailable)
	ErrorInvalidRange         = NewErrorWithCode("ErrorInvalidRange", ErrorBadRequest)
	ErrorInvalidHours         = NewErrorWithCode("ErrorInvalidHours", ErrorBadRequest)
	ErrorHistoryUnavailable   = NewErrorWithCode("ErrorHistoryUnavailable", ErrorInternalServer)
	ErrorAnalyticsUnavailable = NewErrorWithCode("ErrorAnalyticsUnavailable", ErrorInternalServer)
	ErrorLiveFeedUnavailable  = NewErrorWithCode("ErrorLiveFeedUnavailable", ErrorServiceUnavailable)
)

// Success messages
const (
	SuccessLogin            = "SuccessLogin"
	SuccessCleanupCompleted = "SuccessCleanupCompleted"
)
