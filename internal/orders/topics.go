package orders

// All lifecycle events of an order go to one topic.
const TopicOrderEvents = "storefront.order.events"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
