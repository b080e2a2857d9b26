package redisx

import "time"

const (
	// idem:bid:place:{user_id}:{key} -> bid_id
	KeyIdemBidPlace = "idem:bid:place:%s:%s"

	// bid:{bid_id} -> JSON snapshot of the bid
	KeyBidSnapshot = "bid:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// notifications:{user_id} -> list of JSON entries, newest first
	KeyNotifications = "notifications:%s"
)

const FeedCap = 100

//nolint:gochecknoglobals
var (
	TTLIdempotency = 24 * time.Hour
	TTLBidSnapshot = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLFeed        = 30 * 24 * time.Hour
)
