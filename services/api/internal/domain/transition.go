package domain

// transitions is the complete fulfillment transition table. Anything absent is rejected,
// including same-status requests. Cancelled and Delivered have no outgoing edges.
var transitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:   {FulfillmentConfirmed, FulfillmentCancelled},
	FulfillmentConfirmed: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:   {FulfillmentDelivered},
}

// CanTransition reports whether the table admits from -> to.
func CanTransition(from, to FulfillmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s FulfillmentStatus) []FulfillmentStatus {
	out := make([]FulfillmentStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// TransitionTo applies a fulfillment transition to the order in memory.
func (o *Order) TransitionTo(to FulfillmentStatus) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	if !CanTransition(o.FulfillmentStatus, to) {
		return &InvalidTransitionError{From: o.FulfillmentStatus, To: to}
	}
	o.FulfillmentStatus = to
	return nil
}
