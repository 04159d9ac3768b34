// Package heartbeat implements the periodic per-client heartbeat watcher
// (spec.md §2 component #8), consumed by the Subscribe Event Engine as an
// external collaborator rather than driven by it directly. Grounded on
// nugget-thane-ai-agent/internal/connwatch's startup-backoff-then-
// periodic-poll Watcher shape, generalized from "probe a service" to
// "tick a presence heartbeat on an interval," and on
// original_source/core/pbauto_heartbeat.h's per-context thumper: the
// original keeps a process-wide table of thumpers keyed by index, which
// the "Global mutable state" design note (spec.md §9) replaces here with
// one Watcher instance per client.
package heartbeat

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavelet-io/wavelet-go/pkg/metrics"
)

// TickFunc is called once per heartbeat interval. It should be
// non-blocking or internally bounded: the watcher does not run overlapping
// ticks.
type TickFunc func(ctx context.Context)

// Config configures a Watcher.
type Config struct {
	// Interval is the base heartbeat period. Callers should pass the
	// value most recently installed via set_heartbeat (spec.md §4.8),
	// already clamped to the server-defined minimum.
	Interval time.Duration

	// Jitter bounds a random per-tick offset added to Interval, so that
	// many clients started at the same moment do not all thump in
	// lockstep against the service (spec.md SPEC_FULL §4 "Heartbeat
	// thumper jitter"). Zero disables jitter.
	Jitter time.Duration

	Tick    TickFunc
	Logger  *zerolog.Logger
	Metrics *metrics.Registry
}

// Watcher ticks Config.Tick on a jittered interval until Stop is called.
// One Watcher corresponds to one client's heartbeat thumper.
type Watcher struct {
	cfg Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a stopped Watcher.
func New(cfg Config) *Watcher {
	return &Watcher{cfg: cfg}
}

// Start begins ticking in a background goroutine. Calling Start on an
// already-running Watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	go w.run(runCtx)
}

// Stop cancels the watcher and waits for its goroutine to exit. Safe to
// call on a Watcher that was never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Running reports whether the watcher is currently ticking.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	for {
		wait := w.nextInterval()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if w.cfg.Logger != nil {
			w.cfg.Logger.Debug().Dur("interval", wait).Msg("heartbeat thumper tick")
		}
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.ObserveHeartbeat("tick")
		}
		if w.cfg.Tick != nil {
			w.cfg.Tick(ctx)
		}
	}
}

func (w *Watcher) nextInterval() time.Duration {
	base := w.cfg.Interval
	if base <= 0 {
		base = 30 * time.Second
	}
	if w.cfg.Jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int63n(int64(w.cfg.Jitter)))
	return base + offset
}
