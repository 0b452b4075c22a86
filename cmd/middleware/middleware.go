package middleware

import (
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/NegroPrimo123/Students-Bot/internal/dto"
)

func LoggingMiddleware() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// AdminToken guards the admin API with a shared secret passed in the
// X-Admin-Token header. An empty configured token disables the check, which
// is only acceptable in local development.
func AdminToken(token string) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		if token != "" && c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(401, dto.Response{
				Status: "error",
				Error: &dto.Error{
					Code: "UNAUTHORIZED",
					Desc: "Missing or invalid admin token",
				},
			})
			return
		}
		c.Next()
	}
}
