package bids

const (
	TopicBidCreated       = "bid.created"
	TopicBidStatusChanged = "bid.status_changed"
	TopicCartItemAdded    = "cart.item_added"
)

// PartitionKey keeps every event of one bid on one partition, in order.
func PartitionKey(id string) []byte { return []byte(id) }
