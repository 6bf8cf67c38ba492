// Package ginratelimit expõe o mesmo rate limit do pacote ratelimit como
// middleware do gin.
package ginratelimit

import (
	"github.com/gin-gonic/gin"

	"websites-gateway/middleware/ratelimit"
)

// RateLimiter devolve um gin.HandlerFunc que aplica ratelimit.Guard.
// Em caso de rejeição (ou erro do store) a resposta já foi escrita e a cadeia é abortada.
func RateLimiter(opts ratelimit.Options) gin.HandlerFunc {
	g := ratelimit.NewGuard(opts)
	return func(c *gin.Context) {
		if !g.Check(c.Writer, c.Request) {
			c.Abort()
			return
		}
		c.Next()
	}
}
