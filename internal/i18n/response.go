package i18n

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondWithError sends an appropriate HTTP error response for the given error
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	statusCode := http.StatusInternalServerError
	var errWithCode *ErrorWithCode
	if errors.As(err, &errWithCode) {
		statusCode = int(errWithCode.GetCode())
	}
	c.JSON(statusCode, gin.H{"error": TranslateError(c, err)})
}

// AbortWithError is RespondWithError for middleware
func AbortWithError(c *gin.Context, err error) {
	RespondWithError(c, err)
	c.Abort()
}

// RespondWithSuccess sends a success HTTP response with an internationalized message
func RespondWithSuccess(c *gin.Context, statusCode int, msgID string, data map[string]any, payload gin.H) {
	response := gin.H{
		"message": TranslateMessage(c, msgID, data),
	}
	for k, v := range data {
		response[k] = v
	}
	for k, v := range payload {
		response[k] = v
	}
	c.JSON(statusCode, response)
}

// RespondOK sends a success HTTP response with status code 200
func RespondOK(c *gin.Context, msgID string, data map[string]any, payload gin.H) {
	RespondWithSuccess(c, http.StatusOK, msgID, data, payload)
}
