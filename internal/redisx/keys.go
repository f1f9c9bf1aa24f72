package redisx

import "time"

const (
	// Resolved order view cache: order_view:{order_id} -> full JSON body
	KeyOrderView = "order_view:%s"

	// Order status cache (warmed by the notifier): order_status:{order_id}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderView   = 5 * time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
