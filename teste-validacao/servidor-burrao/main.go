// Upstream burro para validar o gateway na mão:
//
//	UPSTREAM_URL=http://localhost:8082 READONLY=true go run ./cmd/gateway
//	go run ./teste-validacao/servidor-burrao
//
// Com SELF_LIMIT=true o próprio servidor aplica o rate limit (adapter gin),
// útil para comparar os headers com os do gateway.
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"websites-gateway/middleware/ratelimit"
	"websites-gateway/middleware/ratelimit/application"
	"websites-gateway/middleware/ratelimit/ginratelimit"
	"websites-gateway/middleware/ratelimit/infra"
)

func main() {
	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if selfLimit, _ := strconv.ParseBool(os.Getenv("SELF_LIMIT")); selfLimit {
		svc, err := application.NewService(infra.NewMemoryCounterStore(), infra.LogAlerter{}, "")
		if err != nil {
			log.Fatalf("rate limiter error: %v", err)
		}
		r.Use(ginratelimit.RateLimiter(ratelimit.Options{Limiter: svc}))
	}

	r.NoRoute(func(c *gin.Context) {
		log.Printf("Log: %s %s (host=%s xff=%q)", c.Request.Method, c.Request.URL.Path, c.Request.Host, c.GetHeader("X-Forwarded-For"))
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"path":    c.Request.URL.Path,
			"host":    c.Request.Host,
		})
	})

	log.Printf("Servidor rodando em http://localhost%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Erro ao subir o servidor: %v", err)
	}
}
