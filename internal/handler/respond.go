package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
)

// abortWithError maps the error taxonomy onto HTTP statuses and writes the
// machine-readable code alongside the message.
func abortWithError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeAuthorization:
		status = http.StatusForbidden
	case apperr.CodeValidation, apperr.CodeScheduling:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeState:
		status = http.StatusConflict
	}

	c.AbortWithStatusJSON(status, gin.H{
		"code":  code,
		"error": err.Error(),
	})
}
