package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"
)

// RateLimit restricts each client IP to `capacity` requests per `window`
// using a token bucket per address. Buckets for idle addresses are pruned
// periodically so the map does not grow without bound.
func RateLimit(window time.Duration, capacity int64) gin.HandlerFunc {
	type client struct {
		bucket   *ratelimit.Bucket
		lastSeen time.Time
	}

	var mu sync.Mutex
	clients := make(map[string]*client)
	fill := window / time.Duration(capacity)

	go func() {
		for range time.Tick(10 * time.Minute) {
			mu.Lock()
			for ip, cl := range clients {
				if time.Since(cl.lastSeen) > 30*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		cl, ok := clients[ip]
		if !ok {
			cl = &client{bucket: ratelimit.NewBucket(fill, capacity)}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if cl.bucket.TakeAvailable(1) == 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Status:    "error",
				Message:   "Too many requests, try again in a moment.",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}
