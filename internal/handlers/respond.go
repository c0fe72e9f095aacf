package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"provably-fair-backend/internal/apperr"
)

// respondError writes err as JSON with the status mapped from its code.
// Unknown errors are answered as 500 without details.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
			"code":  apperr.CodeInternal,
		})
		return
	}

	status := appErr.Code.HTTPStatus()
	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if status == http.StatusInternalServerError {
		body["error"] = "Internal error"
	} else if len(appErr.Metadata) > 0 {
		body["details"] = appErr.Metadata
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"code":    apperr.CodeInvalidConfig,
		"details": err.Error(),
	})
}
