package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recovery converts handler panics into the service's JSON error envelope.
// The panic value reaches the client only in debug mode; otherwise a generic
// message is returned.
func Recovery(debug bool, log *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithField("panic", recovered).Error("Recovered from panic")

		detail := "An unexpected error occurred"
		if debug {
			detail = fmt.Sprintf("%v", recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":  "Internal server error",
			"detail": detail,
		})
	})
}
