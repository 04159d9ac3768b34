package wavelet

import "errors"

// Sentinel errors returned synchronously by Client operations, per
// spec.md §7's caller-error taxonomy. Transport-reported failures
// (timeouts, connection errors) never surface here: those arrive
// asynchronously as a status event instead.
var (
	// ErrNoTransport is returned by New when no Option supplied a
	// transport.Transport.
	ErrNoTransport = errors.New("wavelet: no transport configured")

	// ErrInvalidFilterExpression guards against a filter expression the
	// transport would reject outright.
	ErrInvalidFilterExpression = errors.New("wavelet: invalid filter expression")

	// ErrNotASubscriptionTarget is returned when SubscribeWith /
	// UnsubscribeWith is called with something other than a
	// *Subscription or *SubscriptionSet.
	ErrNotASubscriptionTarget = errors.New("wavelet: not a subscription or subscription set")
)
