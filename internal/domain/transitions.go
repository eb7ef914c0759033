package domain

// orderTransitions is the legality table for the order lifecycle. Actor and side
// effect enforcement live in the order service; this table only answers whether a
// transition is ever legal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:     {OrderStatusSubmitted, OrderStatusCancelled},
	OrderStatusSubmitted: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusShipped, OrderStatusDelivered},
	OrderStatusPreparing: {OrderStatusShipped, OrderStatusDelivered},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransitionOrder reports whether an order may move from one status to another.
// Terminal states have no outgoing transitions.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancelOrder reports whether the owning business may still cancel the order.
// Cancellation is only possible before the provider has confirmed.
func CanCancelOrder(status OrderStatus) bool {
	return status == OrderStatusDraft || status == OrderStatusSubmitted
}

// ValidDeliveryStatus reports whether the value is a known delivery status. The
// delivery machine accepts any forward status from the owning provider; only
// "delivered" carries a side effect and it is idempotent.
func ValidDeliveryStatus(s DeliveryStatus) bool {
	switch s {
	case DeliveryStatusScheduled, DeliveryStatusPickedUp, DeliveryStatusInTransit,
		DeliveryStatusDelivered, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// InvoiceableOrderStatus reports whether an invoice may be issued for an order in the
// given status: confirmed or later, never cancelled.
func InvoiceableOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusConfirmed, OrderStatusPreparing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}
