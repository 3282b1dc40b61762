package cache

import "time"

const (
	// Tracking-link status projection: order_status:{order_number} -> JSON view.
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLOrderStatus = 5 * time.Minute
)
