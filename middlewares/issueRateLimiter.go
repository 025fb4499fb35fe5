package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Counter is the slice of the Redis client the limiter needs
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Decr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// LimitWindow is how long a user's submission count lives
const LimitWindow = 24 * time.Hour

// IssueRateLimiter caps how many reports a user submits per window. Only
// requests answered with 201 Created count against the limit. A nil counter
// disables the limit.
func IssueRateLimiter(counter Counter, queuePrefix string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil {
			c.Next()
			return
		}

		userID := c.GetString(UserIDKey)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		ctx := c.Request.Context()

		// Create individual key for each user
		userKey := queuePrefix + ":" + userID

		// Increment user's count with TTL
		count, err := counter.Incr(ctx, userKey).Result()
		if err != nil {
			log.Error().Err(err).Msg("redis error incrementing count")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}

		// Set TTL only for the first increment (when count = 1)
		if count == 1 {
			if err := counter.Expire(ctx, userKey, LimitWindow).Err(); err != nil {
				log.Error().Err(err).Msg("redis error setting TTL")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
		}

		// Check if user exceeded limit
		if count > int64(limit) {
			release(ctx, counter, userKey)
			retryAfter, _ := counter.TTL(ctx, userKey).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()

		// Rejected submissions give their slot back
		if c.Writer.Status() != http.StatusCreated {
			release(context.WithoutCancel(ctx), counter, userKey)
		}
	}
}

func release(ctx context.Context, counter Counter, userKey string) {
	if err := counter.Decr(ctx, userKey).Err(); err != nil {
		log.Error().Err(err).Str("key", userKey).Msg("redis error releasing count")
	}
}
