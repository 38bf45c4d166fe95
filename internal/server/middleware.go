package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/qrdine/internal/observability/context"
	"github.com/smallbiznis/qrdine/internal/ratelimit"
	"github.com/smallbiznis/qrdine/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// Correlation carries the caller's correlation id, or a fresh one, into the
// request context so published events can be traced back to the request.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := correlation.ContextWithCorrelationID(c.Request.Context(), c.GetHeader(correlation.HeaderName))
		ctx, id := correlation.EnsureCorrelationID(ctx)
		c.Header(correlation.HeaderName, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RestaurantContext tags the request context with the restaurant in the path.
func RestaurantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("restaurantId")); id != "" {
			c.Request = c.Request.WithContext(obscontext.WithRestaurantID(c.Request.Context(), id))
		}
		c.Next()
	}
}

// CheckoutRateLimit throttles order placement per restaurant and client IP.
// Redis failures let the request through.
func CheckoutRateLimit(limiter *ratelimit.CheckoutLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		res, err := limiter.Allow(c.Request.Context(), c.Param("restaurantId"), c.ClientIP())
		if err != nil {
			log.Warn("checkout rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-Id", idempotencyHeader, correlation.HeaderName},
		ExposeHeaders: []string{"Content-Length", "X-Request-Id", correlation.HeaderName},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
