package orders

const (
	TopicOrderCreated = "order.created"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
