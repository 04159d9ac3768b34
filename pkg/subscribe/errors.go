package subscribe

import "errors"

// Sentinel errors returned synchronously by facade operations, per
// spec.md §6's result codes and §7's caller-error taxonomy.
var (
	// ErrSubAlreadyAdded is returned by SubscribeWithSubscription when the
	// entity id is already present in the facade's top-level list.
	ErrSubAlreadyAdded = errors.New("subscribe: subscription already added")

	// ErrSubNotFound is returned by UnsubscribeWithSubscription (and the
	// set variant) when the given subscription is not currently tracked.
	ErrSubNotFound = errors.New("subscribe: subscription not found")
)
