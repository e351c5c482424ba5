package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// CheckoutGuard remembers which order a checkout token produced.
type CheckoutGuard struct {
	Redis redis.Cmdable
}

// Claim reserves the token. When it was claimed before, orderID is the
// order it produced, or "" while that attempt is still running.
func (g *CheckoutGuard) Claim(ctx context.Context, userID, token string) (claimed bool, orderID string, err error) {
	key := fmt.Sprintf(KeyIdemCheckout, userID, token)
	ok, err := g.Redis.SetNX(ctx, key, pendingMarker, TTLIdempotency).Result()
	if err != nil || ok {
		return ok, "", err
	}
	v, err := g.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return g.Claim(ctx, userID, token)
	}
	if err != nil {
		return false, "", err
	}
	if v == pendingMarker {
		return false, "", nil
	}
	return false, v, nil
}

func (g *CheckoutGuard) Complete(ctx context.Context, userID, token, orderID string) error {
	return g.Redis.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, token), orderID, TTLIdempotency).Err()
}

// Release frees the token after a failed attempt so the user can retry.
func (g *CheckoutGuard) Release(ctx context.Context, userID, token string) error {
	return g.Redis.Del(ctx, fmt.Sprintf(KeyIdemCheckout, userID, token)).Err()
}
