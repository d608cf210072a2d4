package order

// Event is an action that may move an order between statuses
type Event string

const (
	EventRequestPayment   Event = "request_payment"
	EventPaymentSucceeded Event = "payment_succeeded"
	EventApprove          Event = "approve"
	EventReject           Event = "reject"
	EventCancel           Event = "cancel"
)

var pendingTargets = map[Event]Status{
	EventRequestPayment:   StatusPending,
	EventPaymentSucceeded: StatusConfirmed,
	EventApprove:          StatusConfirmed,
	EventReject:           StatusRejected,
	EventCancel:           StatusCancelled,
}

// Transition computes the status that results from applying ev to current.
//
// Every (status, event) pair has a defined outcome:
//   - PENDING accepts every event; changed is false only for RequestPayment.
//   - A terminal status ignores PaymentSucceeded, Approve, Reject and Cancel and returns
//     itself unchanged, so redelivered notifications and repeated admin actions are no-ops.
//   - RequestPayment on a terminal status, an unknown status or an unknown event
//     yields an *InvalidStateError.
func Transition(current Status, ev Event) (next Status, changed bool, err error) {
	if !current.Valid() {
		return current, false, &InvalidStateError{Status: current, Event: ev}
	}

	target, known := pendingTargets[ev]
	if !known {
		return current, false, &InvalidStateError{Status: current, Event: ev}
	}

	if current == StatusPending {
		return target, target != current, nil
	}

	if ev == EventRequestPayment {
		return current, false, &InvalidStateError{Status: current, Event: ev}
	}

	return current, false, nil
}

// Apply runs Transition against o and stores the result on it
func (o *Order) Apply(ev Event) (changed bool, err error) {
	next, changed, err := Transition(o.Status, ev)
	if err != nil {
		if ise, ok := err.(*InvalidStateError); ok {
			ise.OrderID = o.ID
		}
		return false, err
	}
	o.Status = next
	return changed, nil
}
