package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/logger"
)

// APIKeyHeader carries the shared secret for pipeline routes.
const APIKeyHeader = "X-API-Key"

// ContextPipelineCaller is set to true once a request presents the pipeline key.
const ContextPipelineCaller = "pipelineCaller"

// pipelineKey returns the presented key. The dedicated header wins over a
// bearer token so schedulers that cannot set custom headers still work.
func pipelineKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequirePipelineKey guards the machine-triggered routes under /pipeline.
// With no key configured those routes answer 503.
func RequirePipelineKey(apiKey string) gin.HandlerFunc {
	log := logger.Named("pipeline")
	want := []byte(apiKey)
	return func(c *gin.Context) {
		if len(want) == 0 {
			log.Warnw("pipeline call without configured key", "route", c.FullPath(), "request_id", RequestID(c))
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}

		got := pipelineKey(c)
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			log.Warnw("pipeline key rejected",
				"route", c.FullPath(),
				"key_present", got != "",
				"client_ip", c.ClientIP(),
				"request_id", RequestID(c),
			)
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}

		c.Set(ContextPipelineCaller, true)
		c.Next()
	}
}
