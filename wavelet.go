// Package wavelet is the root facade of the Wavelet client library: it
// wraps the Subscribe Event Engine (pkg/subscribe), the entity graph
// (pkg/entity), and the Event Listener (pkg/listener) behind one Client,
// the same way the teacher's pkg/manager wraps its engine behind one
// Manager. See spec.md and SPEC_FULL.md.
package wavelet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wavelet-io/wavelet-go/pkg/entity"
	"github.com/wavelet-io/wavelet-go/pkg/heartbeat"
	"github.com/wavelet-io/wavelet-go/pkg/listener"
	"github.com/wavelet-io/wavelet-go/pkg/metrics"
	"github.com/wavelet-io/wavelet-go/pkg/subscribe"
	"github.com/wavelet-io/wavelet-go/pkg/transport"
)

// Client is the Subscribe Event Engine's outward-facing facade (spec.md
// §6's "Facade outward API"), built once per connection identity and
// driving exactly one pkg/subscribe.Facade.
type Client struct {
	id any

	facade   *subscribe.Facade
	listener *listener.Listener
	metrics  *metrics.Registry

	mu      sync.Mutex
	watcher *heartbeat.Watcher

	heartbeatCtx    context.Context
	heartbeatJitter time.Duration
}

// New builds a Client from opts. WithTransport is required; New returns
// ErrNoTransport otherwise.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}

	clientID := cfg.ClientID
	if clientID == nil {
		clientID = uuid.NewString()
	}

	lst := listener.New(cfg.Logger)
	f := subscribe.New(clientID, cfg.Transport, lst, cfg.Logger, cfg.Metrics)
	if cfg.FilterExpression != "" {
		f.SetFilterExpression(cfg.FilterExpression)
	}
	if cfg.HeartbeatSeconds != 0 {
		f.SetHeartbeat(cfg.HeartbeatSeconds)
	}

	c := &Client{
		id:              clientID,
		facade:          f,
		listener:        lst,
		metrics:         cfg.Metrics,
		heartbeatCtx:    cfg.Context,
		heartbeatJitter: cfg.HeartbeatJitter,
	}

	if cfg.AutoHeartbeat {
		c.startWatcher(cfg.Logger, cfg.HeartbeatSeconds)
	}
	return c, nil
}

func (c *Client) startWatcher(logger *zerolog.Logger, seconds int) {
	if seconds < subscribe.MinHeartbeatSeconds {
		seconds = subscribe.MinHeartbeatSeconds
	}
	c.watcher = heartbeat.New(heartbeat.Config{
		Interval: time.Duration(seconds) * time.Second,
		Jitter:   c.heartbeatJitter,
		Tick:     func(context.Context) { c.facade.FireHeartbeat() },
		Logger:   logger,
		Metrics:  c.metrics,
	})
	c.watcher.Start(c.heartbeatCtx)
}

// ID returns the opaque client identity threaded through every listener
// callback and engine Context snapshot.
func (c *Client) ID() any { return c.id }

// Close stops the background heartbeat watcher, if running. It does not
// disconnect the Subscribe Event Engine; call Disconnect first if a
// graceful unsubscribe/leave is wanted.
func (c *Client) Close() {
	c.mu.Lock()
	w := c.watcher
	c.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// NewEntity constructs an Entity owned by this client (spec.md §4.3
// entity constructors, fronted here so callers never import pkg/entity
// just to pass a client identity through).
func (c *Client) NewEntity(kind entity.Kind, id string) (*entity.Entity, error) {
	return entity.New(kind, id, c.id)
}

// RegisterSubscription retains e and returns a Subscription referencing
// it (spec.md §6 register_subscription).
func (c *Client) RegisterSubscription(e *entity.Entity, opts entity.Options) *Subscription {
	return &Subscription{inner: entity.Alloc(c.id, e, opts), client: c}
}

// RegisterSubscriptionSet builds a SubscriptionSet from entities,
// allocating one Subscription per entity (spec.md §6
// register_subscription_set).
func (c *Client) RegisterSubscriptionSet(entities []*entity.Entity, opts entity.Options) *SubscriptionSet {
	return &SubscriptionSet{inner: entity.NewSetFromEntities(c.id, entities, opts), client: c}
}

// RegisterSubscriptionSetPair builds a SubscriptionSet from exactly two
// existing subscriptions (spec.md §6 register_subscription_set_pair).
func (c *Client) RegisterSubscriptionSetPair(a, b *Subscription, opts entity.Options) (*SubscriptionSet, error) {
	ss, err := entity.NewSetFromPair(c.id, a.inner, b.inner, opts)
	if err != nil {
		return nil, err
	}
	return &SubscriptionSet{inner: ss, client: c}, nil
}

// SubscribeWith adds target (a *Subscription or *SubscriptionSet) to the
// active subscription loop, optionally resuming from cursor (spec.md §6
// subscribe_with).
func (c *Client) SubscribeWith(target any, cursor *transport.Cursor) error {
	switch t := target.(type) {
	case *Subscription:
		return c.facade.SubscribeWithSubscription(t.inner, cursor)
	case *SubscriptionSet:
		return c.facade.SubscribeWithSet(t.inner, cursor)
	default:
		return ErrNotASubscriptionTarget
	}
}

// UnsubscribeWith removes target from the active subscription loop
// (spec.md §6 unsubscribe_with).
func (c *Client) UnsubscribeWith(target any) error {
	switch t := target.(type) {
	case *Subscription:
		return c.facade.UnsubscribeWithSubscription(t.inner)
	case *SubscriptionSet:
		return c.facade.UnsubscribeWithSet(t.inner)
	default:
		return ErrNotASubscriptionTarget
	}
}

// Disconnect posts a user-driven disconnect (spec.md §6 disconnect).
func (c *Client) Disconnect() error { return c.facade.Disconnect() }

// Reconnect re-enters Handshaking, optionally resuming from cursor
// (spec.md §6 reconnect).
func (c *Client) Reconnect(cursor *transport.Cursor) error { return c.facade.Reconnect(cursor) }

// UnsubscribeAll clears every subscription and set (spec.md §6
// unsubscribe_all).
func (c *Client) UnsubscribeAll() error { return c.facade.UnsubscribeAll() }

// SetFilterExpression updates the filter expression used by the next
// subscribe/receive request (spec.md §6 set_filter_expression). It
// rejects expressions containing control characters, which the
// transport would otherwise reject outright once embedded in the
// request query string.
func (c *Client) SetFilterExpression(expr string) error {
	for _, r := range expr {
		if r < 0x20 {
			return ErrInvalidFilterExpression
		}
	}
	c.facade.SetFilterExpression(expr)
	return nil
}

// SetHeartbeat updates the presence heartbeat interval (clamped up to
// subscribe.MinHeartbeatSeconds) and, if the background watcher is
// running, restarts it against the new interval (spec.md §6
// set_heartbeat).
func (c *Client) SetHeartbeat(seconds int) {
	c.facade.SetHeartbeat(seconds)
	if seconds < subscribe.MinHeartbeatSeconds {
		seconds = subscribe.MinHeartbeatSeconds
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil || !c.watcher.Running() {
		return
	}
	c.watcher.Stop()
	c.watcher = heartbeat.New(heartbeat.Config{
		Interval: time.Duration(seconds) * time.Second,
		Jitter:   c.heartbeatJitter,
		Tick:     func(context.Context) { c.facade.FireHeartbeat() },
		Metrics:  c.metrics,
	})
	c.watcher.Start(c.heartbeatCtx)
}

// AddStatusListener registers a global status callback (spec.md §6
// add_status_listener).
func (c *Client) AddStatusListener(cb listener.StatusCallback) string {
	return c.listener.AddStatusListener(cb)
}

// RemoveStatusListener removes a previously registered status callback
// (spec.md §6 remove_status_listener).
func (c *Client) RemoveStatusListener(id string) { c.listener.RemoveStatusListener(id) }

// AddMessageListener registers a global message callback for typ (spec.md
// §6 add_message_listener).
func (c *Client) AddMessageListener(typ listener.MessageType, cb listener.MessageCallback) string {
	return c.listener.AddMessageListener(typ, cb)
}

// RemoveMessageListener removes a previously registered global message
// callback (spec.md §6 remove_message_listener).
func (c *Client) RemoveMessageListener(typ listener.MessageType, id string) {
	c.listener.RemoveMessageListener(typ, id)
}

// CurrentStateContext exposes the underlying engine's current data
// snapshot, mostly useful for diagnostics and tests.
func (c *Client) CurrentStateContext() subscribe.Context { return c.facade.CurrentStateContext() }

// Metrics returns the client's metrics registry, or nil if none was
// configured; Handler on a nil Registry serves 404.
func (c *Client) Metrics() *metrics.Registry { return c.metrics }
