package messaging

// Topic names for order lifecycle events. Consumers use one group per
// concern so the notifier can be scaled independently.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderCancelled = "order.cancelled"

	GroupNotifier = "medstore-notifier"
)
