package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pointboard_back_end/internal/database"
)

const (
	// Le poller front interroge le statut toutes les 2s, soit 30 req/min
	// par commande : la limite laisse de la marge pour plusieurs onglets
	StatusPollMaxRequests = 120
	StatusPollWindow      = 1 * time.Minute

	CheckoutMaxRequests = 10
	CheckoutWindow      = 1 * time.Minute
)

// RateLimit limite le nombre de requêtes par IP sur une fenêtre glissante
func RateLimit(name string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Sans Redis (tests, dev minimal) on laisse passer
		if database.Redis == nil {
			c.Next()
			return
		}

		ctx := context.Background()
		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())

		count, err := database.Redis.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			database.Redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl := database.Redis.TTL(ctx, key).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes, réessayez plus tard",
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
