package subscribe

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavelet-io/wavelet-go/internal/container"
	"github.com/wavelet-io/wavelet-go/pkg/ee"
	"github.com/wavelet-io/wavelet-go/pkg/entity"
	"github.com/wavelet-io/wavelet-go/pkg/listener"
	"github.com/wavelet-io/wavelet-go/pkg/metrics"
	"github.com/wavelet-io/wavelet-go/pkg/transport"
)

// MinHeartbeatSeconds is the server-defined floor SetHeartbeat clamps up
// to (spec.md §6 "Minimum heartbeat value").
const MinHeartbeatSeconds = 20

// Facade is the Subscribe Event Engine's public operations surface
// (spec.md §4.8): it owns the top-level subscription/set lists, the
// pending-leave accumulators, and the single transport callback dispatch
// entry point. One Facade exists per client.
//
// Facade holds its own mutex, acquired before the engine's — the
// lock-ordering rule from spec.md §5 ("facade -> engine -> listener ->
// container") is preserved even though Go's GC removes the need for most
// of the manual retain/release bookkeeping the source relies on.
type Facade struct {
	mu sync.Mutex

	client    any
	transport transport.Transport
	listener  *listener.Listener
	logger    *zerolog.Logger
	metrics   *metrics.Registry

	engine *ee.Engine[Context]

	stUnsubscribed     *ee.State[Context]
	stHandshaking      *ee.State[Context]
	stHandshakeFailed  *ee.State[Context]
	stHandshakeStopped *ee.State[Context]
	stReceiving        *ee.State[Context]
	stReceiveFailed    *ee.State[Context]
	stReceiveStopped   *ee.State[Context]

	// subscriptions/sets are the facade's top-level lists (spec.md §4.2's
	// dynamic array, matching the original's ee->subscriptions/
	// ee->subscription_sets pbarray_t fields); Equal is entity-id/pointer
	// identity so Contains/Remove mirror the prior index-scan lookups.
	subscriptions *container.List[*entity.Subscription]
	sets          *container.List[*entity.SubscriptionSet]

	filterExpression string
	heartbeatSeconds int

	// currentKind/currentInv/currentComplete describe the single
	// outstanding handshake/receive transaction, if any (spec.md §5
	// "Suspension points" — the facade's current_transaction).
	currentKind           *transport.TransactionKind
	currentInv            *ee.Invocation[Context]
	currentComplete       ee.CompletionFunc
	handshakeContinuation bool
	currentStartedAt      time.Time

	// cancelInv/cancelComplete track the immediate Cancel effect's own
	// invocation, completed only once its cancellation result arrives
	// (spec.md §4.7 Cancel).
	cancelInv      *ee.Invocation[Context]
	cancelComplete ee.CompletionFunc

	// pendingLeaveChannels/pendingLeaveGroups coalesce leave targets by
	// comma-concatenation while a transaction is outstanding (spec.md §9
	// "Open question: pending-leave aggregation").
	pendingLeaveChannels string
	pendingLeaveGroups   string
}

// New constructs a Facade in state Unsubscribed, with an empty shared
// context, and registers its transport callback dispatch.
func New(client any, tr transport.Transport, lst *listener.Listener, logger *zerolog.Logger, reg *metrics.Registry) *Facade {
	f := &Facade{
		client:           client,
		transport:        tr,
		listener:         lst,
		logger:           logger,
		metrics:          reg,
		heartbeatSeconds: MinHeartbeatSeconds,
		subscriptions: container.NewList(container.Config[*entity.Subscription]{
			Strategy: container.ResizeOptimistic,
			Equal:    func(a, b *entity.Subscription) bool { return a.EntityID() == b.EntityID() },
		}),
		sets: container.NewList(container.Config[*entity.SubscriptionSet]{
			Strategy: container.ResizeOptimistic,
			Equal:    func(a, b *entity.SubscriptionSet) bool { return a == b },
		}),
	}
	f.buildStates()
	f.engine = ee.New(f.stUnsubscribed, Context{Client: client, HeartbeatSeconds: f.heartbeatSeconds}, logger, reg, "subscribe")
	tr.RegisterCallback(f.onTransportCallback)
	return f
}

// CurrentStateContext returns the shared data snapshot attached to the
// engine's current state (spec.md §4.8 current_state_context).
func (f *Facade) CurrentStateContext() Context {
	return f.engine.CurrentData()
}

// CurrentState exposes the engine's current state kind, mostly for tests.
func (f *Facade) CurrentState() ee.StateKind {
	return f.engine.CurrentState().Kind
}

func (f *Facade) snapshotSubscribables() []entity.Subscribable {
	return entity.AggregateSubscribables(f.subscriptions.Elements(), f.sets.Elements())
}

// buildWireStrings renders the sorted, comma-joined channel/group id
// lists sent on the wire, including presence subscribables — matching
// spec.md §8 scenario 2's concrete example ("channels=ch1,ch1-pnpres")
// over the more ambiguous "non-presence" phrasing of the abstract
// testable property; see DESIGN.md.
func buildWireStrings(subs []entity.Subscribable) (channels, groups string) {
	var ch, gr []string
	for _, s := range subs {
		if s.Location == entity.LocationQuery {
			gr = append(gr, s.ID)
		} else {
			ch = append(ch, s.ID)
		}
	}
	sort.Strings(ch)
	sort.Strings(gr)
	return strings.Join(ch, ","), strings.Join(gr, ",")
}

func (f *Facade) nextContext(sentByEE bool) Context {
	subs := f.snapshotSubscribables()
	channels, groups := buildWireStrings(subs)

	prev := f.engine.CurrentData()
	return Context{
		Channels:         channels,
		Groups:           groups,
		Cursor:           prev.Cursor,
		SendHeartbeat:    !sentByEE,
		FilterExpression: f.currentFilterExpression(),
		HeartbeatSeconds: f.currentHeartbeatSeconds(),
		Client:           f.client,
	}
}

func (f *Facade) currentFilterExpression() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterExpression
}

func (f *Facade) currentHeartbeatSeconds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatSeconds
}

// postSubscriptionEvent builds the next context and posts
// SubscriptionChanged (or SubscriptionRestored, when cursor carries a
// non-initial timetoken) per spec.md §4.8.
func (f *Facade) postSubscriptionEvent(cursor *transport.Cursor, sentByEE bool) error {
	next := f.nextContext(sentByEE)
	kind := EventSubscriptionChanged
	if cursor != nil {
		next.Cursor = *cursor
		if !cursor.IsInitial() {
			kind = EventSubscriptionRestored
		}
	}
	return f.engine.HandleEvent(ee.Event[Context]{Kind: kind, Data: next})
}

// SubscribeWithSubscription appends sub to the facade's top-level list
// and posts the resulting subscription-changed event (spec.md §4.8
// subscribe_with_subscription).
func (f *Facade) SubscribeWithSubscription(sub *entity.Subscription, cursor *transport.Cursor) error {
	f.mu.Lock()
	if f.subscriptions.Contains(sub) {
		f.mu.Unlock()
		return ErrSubAlreadyAdded
	}
	if err := f.subscriptions.Add(sub); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	return f.postSubscriptionEvent(cursor, false)
}

// UnsubscribeWithSubscription removes sub, queues a leave for whatever
// subscribables it alone contributed, and posts a follow-up
// subscription-changed event with sent_by_ee = true (spec.md §4.8
// unsubscribe_with_subscription).
func (f *Facade) UnsubscribeWithSubscription(sub *entity.Subscription) error {
	f.mu.Lock()
	if !f.subscriptions.Contains(sub) {
		f.mu.Unlock()
		return ErrSubNotFound
	}
	f.subscriptions.Remove(sub, false)
	f.mu.Unlock()

	f.leaveUncoveredAndFree(sub.Subscribables(), sub)
	return f.postSubscriptionEvent(nil, true)
}

// SubscribeWithSet is the subscription-set analogue of
// SubscribeWithSubscription (spec.md §4.8 "symmetric rules apply to the
// subscription-set variants").
func (f *Facade) SubscribeWithSet(set *entity.SubscriptionSet, cursor *transport.Cursor) error {
	f.mu.Lock()
	if err := f.sets.Add(set); err != nil {
		f.mu.Unlock()
		return err
	}
	set.SetSubscribed(true)
	f.mu.Unlock()
	return f.postSubscriptionEvent(cursor, false)
}

// UnsubscribeWithSet is the subscription-set analogue of
// UnsubscribeWithSubscription.
func (f *Facade) UnsubscribeWithSet(set *entity.SubscriptionSet) error {
	f.mu.Lock()
	if !f.sets.Contains(set) {
		f.mu.Unlock()
		return ErrSubNotFound
	}
	f.sets.Remove(set, false)
	f.mu.Unlock()

	set.SetSubscribed(false)
	f.leaveUncoveredAndFree(set.Subscribables(), set)
	return f.postSubscriptionEvent(nil, true)
}

// ChangeSubscriptionWithSet adds or removes sub from an already-tracked
// set and posts the resulting subscription-changed event, using the
// set's own options for the subscribable computation (spec.md §4.8
// change_subscription_with_subscription_set).
func (f *Facade) ChangeSubscriptionWithSet(set *entity.SubscriptionSet, sub *entity.Subscription, added bool) error {
	if added {
		if err := set.Add(sub); err != nil {
			return err
		}
		return f.postSubscriptionEvent(nil, false)
	}

	removedSubs := sub.SubscribablesWithOptions(set.Options())
	if !set.Remove(sub.EntityID()) {
		return ErrSubNotFound
	}
	f.leaveUncoveredAndFree(removedSubs, sub)
	return f.postSubscriptionEvent(nil, false)
}

// freer is satisfied by *entity.Subscription and *entity.SubscriptionSet.
type freer interface{ Free() }

func (f *Facade) leaveUncoveredAndFree(removedSubs []entity.Subscribable, owner freer) {
	remaining := f.snapshotSubscribables()
	stillCovered := make(map[string]struct{}, len(remaining))
	for _, s := range remaining {
		stillCovered[s.Key()] = struct{}{}
	}
	var leaveCh, leaveGr []string
	for _, s := range removedSubs {
		if _, ok := stillCovered[s.Key()]; ok {
			continue
		}
		if s.Location == entity.LocationQuery {
			leaveGr = append(leaveGr, s.ID)
		} else {
			leaveCh = append(leaveCh, s.ID)
		}
	}
	owner.Free()
	f.queueLeave(leaveCh, leaveGr)
}

func (f *Facade) queueLeave(channels, groups []string) {
	if len(channels) == 0 && len(groups) == 0 {
		return
	}
	sort.Strings(channels)
	sort.Strings(groups)
	chStr := strings.Join(channels, ",")
	grStr := strings.Join(groups, ",")

	f.mu.Lock()
	inFlight := f.currentKind != nil
	canStart := f.transport.CanStartTransaction()
	if inFlight || !canStart {
		f.pendingLeaveChannels = coalesceCSV(f.pendingLeaveChannels, chStr)
		f.pendingLeaveGroups = coalesceCSV(f.pendingLeaveGroups, grStr)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.fireLeave(chStr, grStr)
}

// coalesceCSV implements the pending-leave coalescing rule: accumulate by
// string concatenation with a comma separator (spec.md §9).
func coalesceCSV(existing, add string) string {
	if add == "" {
		return existing
	}
	if existing == "" {
		return add
	}
	return existing + "," + add
}

func (f *Facade) fireLeave(channels, groups string) {
	_ = f.transport.Leave(context.Background(), channels, groups, nil)
}

// drainPendingLeave fires any coalesced leave request once a transaction
// frees up, per spec.md §4.8's dispatch branch.
func (f *Facade) drainPendingLeave() bool {
	f.mu.Lock()
	ch, gr := f.pendingLeaveChannels, f.pendingLeaveGroups
	if ch == "" && gr == "" {
		f.mu.Unlock()
		return false
	}
	f.pendingLeaveChannels, f.pendingLeaveGroups = "", ""
	f.mu.Unlock()
	f.fireLeave(ch, gr)
	return true
}

// Disconnect posts the Disconnect event (spec.md §4.8).
func (f *Facade) Disconnect() error {
	return f.engine.HandleEvent(ee.Event[Context]{Kind: EventDisconnect, Data: f.engine.CurrentData()})
}

// Reconnect posts the Reconnect event, optionally overriding the cursor
// to resume from (spec.md §4.8).
func (f *Facade) Reconnect(cursor *transport.Cursor) error {
	data := f.engine.CurrentData()
	if cursor != nil {
		data.Cursor = *cursor
	}
	data.SendHeartbeat = false
	return f.engine.HandleEvent(ee.Event[Context]{Kind: EventReconnect, Data: data})
}

// UnsubscribeAll clears every subscription and set, queues a leave
// covering everything that was active, and posts UnsubscribeAll (spec.md
// §4.8).
func (f *Facade) UnsubscribeAll() error {
	f.mu.Lock()
	subs, sets := f.subscriptions.Elements(), f.sets.Elements()
	allSubs := entity.AggregateSubscribables(subs, sets)
	f.subscriptions.RemoveAll()
	f.sets.RemoveAll()
	f.mu.Unlock()

	for _, s := range subs {
		s.Free()
	}
	for _, s := range sets {
		s.Free()
	}

	ch, gr := entity.SplitByLocation(allSubs)
	f.queueLeave(ch, gr)

	data := Context{
		FilterExpression: f.currentFilterExpression(),
		HeartbeatSeconds: f.currentHeartbeatSeconds(),
		Client:           f.client,
	}
	return f.engine.HandleEvent(ee.Event[Context]{Kind: EventUnsubscribeAll, Data: data})
}

// HandleSubscribeError is the externally driven hook used when the
// transport-start call itself fails synchronously (spec.md §4.8
// handle_subscribe_error).
func (f *Facade) HandleSubscribeError(reason string) error {
	cur := f.engine.CurrentState()
	data := f.engine.CurrentData()
	data.Reason = reason
	kind := EventHandshakeFailure
	if cur.Kind == StateReceiving {
		kind = EventReceiveFailure
	}
	return f.engine.HandleEvent(ee.Event[Context]{Kind: kind, Data: data})
}

// SetFilterExpression updates the filter expression used by the next
// subscribe/receive request (spec.md §4.8).
func (f *Facade) SetFilterExpression(expr string) {
	f.mu.Lock()
	f.filterExpression = expr
	f.mu.Unlock()
}

// SetHeartbeat updates the presence heartbeat interval, clamped up to
// MinHeartbeatSeconds (spec.md §6 "Minimum heartbeat value").
func (f *Facade) SetHeartbeat(seconds int) {
	if seconds < MinHeartbeatSeconds {
		seconds = MinHeartbeatSeconds
	}
	f.mu.Lock()
	f.heartbeatSeconds = seconds
	f.mu.Unlock()
}

// FireHeartbeat issues a standalone presence heartbeat outside of the
// handshake/receive transaction tracking, used by the periodic heartbeat
// watcher (pkg/heartbeat) to keep presence alive during a long-running
// Receive without disturbing the facade's single-outstanding-transaction
// bookkeeping. It is a no-op when not Receiving or when the transport's
// CanStartTransaction reports false.
func (f *Facade) FireHeartbeat() {
	if f.engine.CurrentState().Kind != StateReceiving {
		return
	}
	if !f.transport.CanStartTransaction() {
		return
	}
	data := f.engine.CurrentData()
	_ = f.transport.Heartbeat(context.Background(), data.Channels, data.Groups, nil)
}

func (f *Facade) beginTransaction(kind transport.TransactionKind, isHeartbeatPhase bool) {
	f.mu.Lock()
	k := kind
	f.currentKind = &k
	f.handshakeContinuation = isHeartbeatPhase
	f.currentStartedAt = monotonicNow()
	f.mu.Unlock()
}

func (f *Facade) clearTransaction() {
	f.mu.Lock()
	f.currentKind = nil
	f.handshakeContinuation = false
	f.mu.Unlock()
}

// onTransportCallback is the facade's single transport callback dispatch
// entry point (spec.md §4.8).
func (f *Facade) onTransportCallback(result transport.CallbackResult) {
	if result.Result == transport.ResultCancelled ||
		result.Kind == transport.TransactionHeartbeat ||
		result.Kind == transport.TransactionLeave {
		f.dispatchControlResult(result)
		return
	}
	f.dispatchSubscribeResult(result)
}

func (f *Facade) dispatchControlResult(result transport.CallbackResult) {
	f.mu.Lock()
	cancelInv, cancelComplete := f.cancelInv, f.cancelComplete
	f.cancelInv, f.cancelComplete = nil, nil
	curInv, curComplete := f.currentInv, f.currentComplete
	wasHeartbeatPhase := f.handshakeContinuation
	f.currentKind = nil
	f.handshakeContinuation = false
	f.mu.Unlock()

	if cancelInv != nil && cancelComplete != nil {
		cancelComplete(false)
	}

	if result.Result == transport.ResultCancelled {
		if curInv != nil && curComplete != nil {
			f.mu.Lock()
			f.currentInv, f.currentComplete = nil, nil
			f.mu.Unlock()
			curComplete(false)
		}
		if !f.drainPendingLeave() {
			f.engine.ProcessNextInvocation()
		}
		return
	}

	if result.Kind == transport.TransactionHeartbeat && wasHeartbeatPhase && curInv != nil {
		data := f.engine.CurrentData()
		f.beginSubscribe(context.Background(), curInv, data, curComplete)
		return
	}

	if !f.drainPendingLeave() {
		f.engine.ProcessNextInvocation()
	}
}

func (f *Facade) dispatchSubscribeResult(result transport.CallbackResult) {
	f.mu.Lock()
	curComplete := f.currentComplete
	f.currentInv, f.currentComplete = nil, nil
	startedAt := f.currentStartedAt
	f.currentKind = nil
	f.handshakeContinuation = false
	f.mu.Unlock()

	cur := f.engine.CurrentState()
	if f.metrics != nil && !startedAt.IsZero() {
		dur := monotonicNow().Sub(startedAt)
		if cur.Kind == StateHandshaking {
			if h := f.metrics.HandshakeDuration(); h != nil {
				h.Observe(dur.Seconds())
			}
		} else if h := f.metrics.ReceiveDuration(); h != nil {
			h.Observe(dur.Seconds())
		}
	}

	if curComplete != nil {
		curComplete(false)
	}

	if result.Result != transport.ResultOK {
		reason := reasonFor(result)
		data := f.engine.CurrentData()
		data.Reason = reason
		kind := EventHandshakeFailure
		if cur.Kind == StateReceiving {
			kind = EventReceiveFailure
		}
		_ = f.engine.HandleEvent(ee.Event[Context]{Kind: kind, Data: data})
		return
	}

	data := f.engine.CurrentData()
	data.Cursor = result.Cursor
	data.Reason = ""
	data.PendingMessages = result.Messages
	kind := EventHandshakeSuccess
	if cur.Kind == StateReceiving {
		kind = EventReceiveSuccess
	}
	_ = f.engine.HandleEvent(ee.Event[Context]{Kind: kind, Data: data})
}

func reasonFor(result transport.CallbackResult) string {
	if result.Reason != "" {
		return result.Reason
	}
	switch result.Result {
	case transport.ResultTimeout:
		return "timeout"
	case transport.ResultConnectionError:
		return "connection_error"
	case transport.ResultServerError:
		return "server_error"
	default:
		return "unknown_error"
	}
}

// monotonicNow exists only so duration measurements read clearly at call
// sites; it is the one use of wall-clock time in this package and is not
// part of any engine data snapshot, so it does not interact with the
// "no Date.now()-like nondeterminism in event data" contract the Event
// Engine relies on.
func monotonicNow() time.Time { return time.Now() }
