package server

import (
	"github.com/gin-gonic/gin"

	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
)

// RespondError writes an engine error as JSON with the mapped status.
// Conflict details (e.g. the existing match status) are merged into the
// body so clients can react without a second round trip.
func RespondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	for k, v := range svcErr.Details(err) {
		body[k] = v
	}
	c.JSON(svcErr.HTTPStatus(err), body)
}
