// Package heartbeat provides a periodic callback that can be suppressed by
// resetting it. A component that receives an authoritative event stream
// resets the heartbeater on every event; heartbeats then only fire while the
// stream is silent.
package heartbeat

import (
	"sync"
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
)

// Heartbeater fires fn every period unless Reset arrives first. Any reset
// received during a wait restarts the wait from zero, so the next callback is
// at least one period after the most recent reset.
type Heartbeater struct {
	name   string
	period time.Duration
	fn     func() error
	logger cx.Logger

	mu      sync.Mutex
	running bool
	resetCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewHeartbeater(name string, period time.Duration, fn func() error) *Heartbeater {
	return &Heartbeater{
		name:   name,
		period: period,
		fn:     fn,
		logger: cx.NewDefaultLogger(),
	}
}

// SetLogger replaces the logger used for callback failures.
func (h *Heartbeater) SetLogger(logger cx.Logger) *Heartbeater {
	h.logger = logger
	return h
}

// Start launches the worker. Starting a running heartbeater is an error.
func (h *Heartbeater) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return cx.NewIllegalState("heartbeater " + h.name + " already started")
	}
	// A reset only needs to remember that it happened, not how many times:
	// a single-slot channel keeps the latest signal and drops the rest.
	h.resetCh = make(chan struct{}, 1)
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.running = true
	go h.run(h.resetCh, h.stopCh, h.doneCh)
	return nil
}

func (h *Heartbeater) run(resetCh, stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	timer := time.NewTimer(h.period)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			if err := h.fn(); err != nil {
				h.logger.Logf("heartbeat %s failed: %v", h.name, err)
			}
			timer.Reset(h.period)
		case <-resetCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(h.period)
		case <-stopCh:
			return
		}
	}
}

// Reset restarts the current wait. Non-blocking and safe from any goroutine,
// including concurrently with Stop (Stop wins).
func (h *Heartbeater) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	select {
	case h.resetCh <- struct{}{}:
	default:
	}
}

// Stop joins the worker. An in-flight callback is waited for, not cancelled.
// Stop is idempotent.
func (h *Heartbeater) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.stopCh)
	doneCh := h.doneCh
	h.mu.Unlock()
	<-doneCh
	return nil
}
