package orders

const (
	TopicOrderCreated         = "shop.order.created"
	TopicOrderStatusChanged   = "shop.order.status_changed"
	TopicPaymentStatusChanged = "shop.payment.status_changed"
)

// Topics consumed by the status cache.
var Topics = []string{TopicOrderCreated, TopicOrderStatusChanged, TopicPaymentStatusChanged}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
