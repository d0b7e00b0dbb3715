package i18n

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an HTTP status code
type ErrorCode int

// Standard HTTP status codes
const (
	ErrorBadRequest         ErrorCode = http.StatusBadRequest
	ErrorUnauthorized       ErrorCode = http.StatusUnauthorized
	ErrorNotFound           ErrorCode = http.StatusNotFound
	ErrorInternalServer     ErrorCode = http.StatusInternalServerError
	ErrorServiceUnavailable ErrorCode = http.StatusServiceUnavailable
)

// I18nError represents an internationalized error
type I18nError struct {
	// MessageID is the key used for translation lookup
	MessageID string
	// Data holds template parameters for the message
	Data map[string]any
}

// Error translates the message into the default language
func (e *I18nError) Error() string {
	t := GetTranslator()
	return t.Translate(e.MessageID, t.DefaultLanguage(), e.Data)
}

// TranslateByContext translates the error based on the context's language preference
func (e *I18nError) TranslateByContext(c *gin.Context) string {
	return GetTranslator().Translate(e.MessageID, contextLang(c), e.Data)
}

// ErrorWithCode is an error with a code that can be used in API responses
type ErrorWithCode struct {
	*I18nError
	Code ErrorCode
}

// NewErrorWithCode creates a new error with a code
func NewErrorWithCode(messageID string, code ErrorCode) *ErrorWithCode {
	return &ErrorWithCode{
		I18nError: &I18nError{MessageID: messageID},
		Code:      code,
	}
}

// WithParam returns a copy carrying one more template parameter; the
// receiver, usually a package-level error, is left untouched.
func (e *ErrorWithCode) WithParam(key string, value any) *ErrorWithCode {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	return &ErrorWithCode{
		I18nError: &I18nError{MessageID: e.MessageID, Data: data},
		Code:      e.Code,
	}
}

// Is matches errors with the same message ID
func (e *ErrorWithCode) Is(target error) bool {
	var other *ErrorWithCode
	return errors.As(target, &other) && other.MessageID == e.MessageID
}

// GetCode returns the error code
func (e *ErrorWithCode) GetCode() ErrorCode {
	return e.Code
}

// TranslateError translates an error using the context's language preference
func TranslateError(c *gin.Context, err error) string {
	if err == nil {
		return ""
	}
	var errWithCode *ErrorWithCode
	if errors.As(err, &errWithCode) {
		return errWithCode.TranslateByContext(c)
	}
	var i18nErr *I18nError
	if errors.As(err, &i18nErr) {
		return i18nErr.TranslateByContext(c)
	}
	return err.Error()
}
