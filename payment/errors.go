package payment

import "errors"

// ErrAmountMismatch is returned when a callback reports an amount other than the order total.
// Nothing is persisted for such a callback.
var ErrAmountMismatch = errors.New("callback amount does not match order total")
