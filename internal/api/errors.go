package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/models"
)

// retryAfter is the Retry-After value, in seconds, sent with network failures.
const retryAfter = "5"

// respondError writes err as {"error": message} with the status of its
// kind.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		re    *gateway.RemoteError
		fe    *models.FieldError
		empty *export.EmptyResultError
	)
	switch {
	case errors.As(err, &re):
		status = gateway.StatusForKind(re.Kind)
		if re.Retryable() {
			c.Header("Retry-After", retryAfter)
		}
	case errors.As(err, &fe):
		status = http.StatusBadRequest
	case errors.As(err, &empty):
		status = http.StatusNotFound
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
