package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// ErrInFlight means another request with the same key has not finished yet.
var ErrInFlight = errors.New("idempotent request in flight")

type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency { return &Idempotency{rdb: rdb} }

func idemKey(userID, key string) string { return fmt.Sprintf(KeyIdemOrderCreate, userID, key) }

// Begin claims key for userID. It returns started=true when the caller owns
// the attempt, or the order id recorded by an earlier completed attempt.
func (i *Idempotency) Begin(ctx context.Context, userID, key string) (orderID string, started bool, err error) {
	k := idemKey(userID, key)
	ok, err := i.rdb.SetNX(ctx, k, pendingMarker, TTLIdemPending).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; try once more
		ok, err = i.rdb.SetNX(ctx, k, pendingMarker, TTLIdemPending).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}
		return "", false, ErrInFlight
	}
	if err != nil {
		return "", false, err
	}
	if v == pendingMarker {
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.rdb.Set(ctx, idemKey(userID, key), orderID, TTLIdempotency).Err()
}

// Abort releases a claim so the client can retry after a failed attempt.
func (i *Idempotency) Abort(ctx context.Context, userID, key string) error {
	return i.rdb.Del(ctx, idemKey(userID, key)).Err()
}
