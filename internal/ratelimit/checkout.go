package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/qrdine/internal/config"
)

const keyCheckout = "checkout:%s:%s"

// CheckoutLimiter throttles order placement per restaurant and client so a
// shared QR code cannot flood the kitchen.
type CheckoutLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewCheckoutLimiter returns nil when redis or the limit is not configured.
func NewCheckoutLimiter(client *redis.Client, cfg config.Config) *CheckoutLimiter {
	limit := cfg.CheckoutLimit
	if client == nil || limit.Rate <= 0 || limit.Burst <= 0 {
		return nil
	}
	return &CheckoutLimiter{
		bucket: NewTokenBucket(client),
		rate:   limit.Rate,
		burst:  limit.Burst,
	}
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow reports whether the client may place another order now.
func (l *CheckoutLimiter) Allow(ctx context.Context, restaurantID, client string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyCheckout, strings.TrimSpace(restaurantID), strings.TrimSpace(client))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
