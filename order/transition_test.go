package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusRejected, StatusCancelled}

var allEvents = []Event{EventRequestPayment, EventPaymentSucceeded, EventApprove, EventReject, EventCancel}

func TestTransition_FromPending(t *testing.T) {
	tests := []struct {
		event   Event
		want    Status
		changed bool
	}{
		{EventRequestPayment, StatusPending, false},
		{EventPaymentSucceeded, StatusConfirmed, true},
		{EventApprove, StatusConfirmed, true},
		{EventReject, StatusRejected, true},
		{EventCancel, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			next, changed, err := Transition(StatusPending, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestTransition_TerminalStatusesAreNoOps(t *testing.T) {
	for _, status := range []Status{StatusConfirmed, StatusRejected, StatusCancelled} {
		for _, ev := range []Event{EventPaymentSucceeded, EventApprove, EventReject, EventCancel} {
			next, changed, err := Transition(status, ev)
			assert.NoError(t, err, "%s + %s", status, ev)
			assert.False(t, changed, "%s + %s", status, ev)
			assert.Equal(t, status, next, "%s + %s", status, ev)
		}
	}
}

func TestTransition_PaymentRequestOnTerminalIsInvalid(t *testing.T) {
	for _, status := range []Status{StatusConfirmed, StatusRejected, StatusCancelled} {
		next, changed, err := Transition(status, EventRequestPayment)
		assert.True(t, IsInvalidState(err), "status %s", status)
		assert.False(t, changed)
		assert.Equal(t, status, next)
	}
}

func TestTransition_IsTotal(t *testing.T) {
	// every pair either succeeds with a known status or returns InvalidStateError
	for _, status := range allStatuses {
		for _, ev := range allEvents {
			next, _, err := Transition(status, ev)
			if err != nil {
				assert.True(t, IsInvalidState(err), "%s + %s returned %v", status, ev, err)
			}
			assert.True(t, next.Valid(), "%s + %s left status %q", status, ev, next)
		}
	}
}

func TestTransition_UnknownInputs(t *testing.T) {
	_, _, err := Transition(Status("SHIPPED"), EventCancel)
	assert.True(t, IsInvalidState(err))

	_, _, err = Transition(StatusPending, Event("refund"))
	assert.True(t, IsInvalidState(err))
}

func TestOrder_Apply(t *testing.T) {
	o := &Order{ID: "order1", Status: StatusPending}

	changed, err := o.Apply(EventCancel)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, o.Status)

	changed, err = o.Apply(EventCancel)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusCancelled, o.Status)

	_, err = o.Apply(EventRequestPayment)
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "order1", ise.OrderID)
	assert.Contains(t, err.Error(), "order1")
}

func TestTransaction_SameAttempt(t *testing.T) {
	base := Transaction{ID: "tx-1", OrderID: "order1", Provider: "vnpay", ProviderTxnNo: "14000001", ResultCode: "00"}

	tests := []struct {
		name   string
		change func(tx *Transaction)
		want   bool
	}{
		{name: "replay with another id", change: func(tx *Transaction) { tx.ID = "tx-2" }, want: true},
		{name: "other result code", change: func(tx *Transaction) { tx.ResultCode = "24" }, want: false},
		{name: "other order", change: func(tx *Transaction) { tx.OrderID = "order2" }, want: false},
		{name: "other provider", change: func(tx *Transaction) { tx.Provider = "onepay" }, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.change(&other)
			assert.Equal(t, tt.want, base.SameAttempt(other))
		})
	}
}

func TestTransaction_DedupKey(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want string
	}{
		{name: "provider number", tx: Transaction{ID: "tx-1", ProviderTxnNo: "14000001"}, want: "14000001"},
		{name: "attempt key wins", tx: Transaction{ID: "tx-1", ProviderTxnNo: "0", AttemptKey: "raw:ab12"}, want: "raw:ab12"},
		{name: "zero number falls back to id", tx: Transaction{ID: "tx-1", ProviderTxnNo: "0"}, want: "id:tx-1"},
		{name: "empty number falls back to id", tx: Transaction{ID: "tx-1"}, want: "id:tx-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.DedupKey())
		})
	}
}

func TestTransaction_ZeroNumbersOfDifferentAttemptsDiffer(t *testing.T) {
	a := Transaction{ID: "tx-1", OrderID: "order1", Provider: "vnpay", ProviderTxnNo: "0", ResultCode: "24"}
	b := a
	b.ID = "tx-2"
	assert.False(t, a.SameAttempt(b))
}
