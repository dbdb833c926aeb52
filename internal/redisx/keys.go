package redisx

import "time"

const (
	// Create-order idempotency: idem:order:create:{user_id}:{key} -> order_id, or "pending" while in flight.
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Order status cache: order_status:{order_id} -> {"user_id": "...", "status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
