package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/logger"
)

// ErrorHandler renders errors attached with c.Error when the handler has not
// written a response itself. Non-AppErrors are logged and masked as INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if appErr.Internal != nil {
			log.Errorw("request error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", RequestID(c),
			)
		}
		c.JSON(appErr.StatusCode, failureBody(appErr))
	}
}

// abortWithError stops the chain and writes the failure envelope.
func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, failureBody(err))
}

func failureBody(err *apperrors.AppError) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	}
}
