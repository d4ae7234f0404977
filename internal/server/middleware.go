package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/vendwatch/vendwatch/internal/viewer"
)

// viewerHeader carries the caller identity resolved by the upstream
// gateway. Authentication itself happens there; this middleware only loads
// the user and derives the scoping attributes.
const viewerHeader = "X-User-Id"

func (s *Server) ViewerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(viewerHeader))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.identitySvc.GetByID(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !user.Active || user.Suspended {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		v := viewer.Viewer{UserID: user.ID, Superuser: user.Superuser()}
		c.Request = c.Request.WithContext(viewer.WithViewer(c.Request.Context(), v))
		c.Next()
	}
}

func (s *Server) SuperuserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := viewer.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !v.Superuser {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentViewer(c *gin.Context) (viewer.Viewer, bool) {
	return viewer.FromContext(c.Request.Context())
}

// IngestRateLimit throttles one vendor feed through the redis token bucket.
// A nil limiter means rate limiting is disabled.
func (s *Server) IngestRateLimit(feed string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		res := s.ingestLimiter.Allow(c.Request.Context(), feed)
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			}
			s.metrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath(), "bucket_exhausted")
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.metrics.RecordRateLimitAllowed(c.Request.Context(), c.FullPath())
		c.Next()
	}
}
