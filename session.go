package tabletclient

import (
	"sync"

	"github.com/zikwall/tabletstore-client/src/batcher"
	"github.com/zikwall/tabletstore-client/src/cx"
)

// FlushMode controls when a session sends buffered mutations.
type FlushMode int

const (
	// AutoFlushSync flushes synchronously inside every Apply.
	AutoFlushSync FlushMode = iota
	// AutoFlushBackground is accepted but the background flusher is not
	// implemented yet; it currently buffers like ManualFlush.
	AutoFlushBackground
	// ManualFlush buffers until the caller flushes.
	ManualFlush
)

var _ batcher.Sink = (*Session)(nil)

// Session is the user-facing write handle: it owns the current batcher, the
// flush policy and the error collector. A session is safe for concurrent use;
// flush callbacks may run on transport goroutines.
type Session struct {
	client *Client
	logger cx.Logger
	errors *batcher.ErrorCollector

	mu        sync.Mutex
	flushMode FlushMode
	timeoutMs int
	current   *batcher.Batcher
	flushed   map[*batcher.Batcher]struct{}
}

func newSession(c *Client) *Session {
	return &Session{
		client:    c,
		logger:    c.logger,
		errors:    batcher.NewErrorCollector(c.options.maxPendingErrors),
		flushMode: AutoFlushSync,
		flushed:   map[*batcher.Batcher]struct{}{},
	}
}

// init installs the initial batcher. Called once by Client.NewSession.
func (s *Session) init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		panic("tabletclient: session initialized twice")
	}
	s.rotateBatcher(nil)
}

// rotateBatcher installs a fresh batcher as current, handing the previous one
// back through old when requested. The session lock must be held.
func (s *Session) rotateBatcher(old **batcher.Batcher) {
	b := batcher.New(s.client, s.errors, s, s.client.options.bufferFactory(), s.logger)
	b.SetTimeoutMillis(s.timeoutMs)
	prev := s.current
	s.current = b
	if old != nil {
		*old = prev
	}
}

// SetFlushMode changes the flush policy. Changing the mode is only legal
// while nothing is buffered; re-setting the current mode always succeeds.
func (s *Session) SetFlushMode(mode FlushMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode != s.flushMode && s.current.HasPendingOperations() {
		return cx.NewIllegalState("Cannot change flush mode when writes are buffered")
	}
	if mode < AutoFlushSync || mode > ManualFlush {
		return cx.NewInvalidArgument("Bad flush mode")
	}
	s.flushMode = mode
	return nil
}

// SetTimeoutMillis sets the per-operation timeout and propagates it to the
// current batcher. Negative values are rejected.
func (s *Session) SetTimeoutMillis(millis int) error {
	if millis < 0 {
		return cx.NewInvalidArgument("timeout must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutMs = millis
	s.current.SetTimeoutMillis(millis)
	return nil
}

// Apply hands a mutation to the current batcher. The mutation's key columns
// must all be set. In AutoFlushSync mode Apply flushes immediately and
// returns the flush status.
func (s *Session) Apply(insert *Insert) error {
	if !insert.Row().IsKeySet() {
		return cx.NewIllegalState("Key not specified: " + insert.String())
	}

	s.mu.Lock()
	current := s.current
	mode := s.flushMode
	s.mu.Unlock()

	// Outside the session lock: the batcher takes its own.
	current.Add(insert)

	if mode == AutoFlushSync {
		return s.Flush()
	}
	return nil
}

// Flush sends all buffered mutations and blocks until the batch completes.
func (s *Session) Flush() error {
	synchronizer := cx.NewSynchronizer()
	s.FlushAsync(synchronizer.Callback())
	return synchronizer.Wait()
}

// FlushAsync rotates in a fresh batcher and drains the previous one in the
// background. The callback fires with the batch-level status once the batch
// completes; per-operation failures land in the error collector instead.
func (s *Session) FlushAsync(callback func(error)) {
	// Swap in a new batcher to start building the next batch and save off
	// the old one, all under the lock.
	var old *batcher.Batcher
	s.mu.Lock()
	s.rotateBatcher(&old)
	s.flushed[old] = struct{}{}
	s.mu.Unlock()

	// Send off the buffered data outside of the lock: on completion the
	// batcher reenters the session through FlushFinished from its flushing
	// goroutine.
	old.FlushAsync(callback)
}

// FlushFinished is called by a batcher when its flush completes. Receiving it
// for a batcher the session does not track is a programming error.
func (s *Session) FlushFinished(b *batcher.Batcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flushed[b]; !ok {
		panic("tabletclient: flush finished for an untracked batcher")
	}
	delete(s.flushed, b)
}

// HasPendingOperations is true while the current batcher or any in-flight
// batch still holds unsent or unacknowledged mutations.
func (s *Session) HasPendingOperations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.HasPendingOperations() {
		return true
	}
	for b := range s.flushed {
		if b.HasPendingOperations() {
			return true
		}
	}
	return false
}

// CountBufferedOperations reports how many mutations the current batcher
// holds. Only meaningful in ManualFlush mode.
func (s *Session) CountBufferedOperations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushMode != ManualFlush {
		panic("tabletclient: CountBufferedOperations outside ManualFlush")
	}
	return s.current.CountBufferedOperations()
}

// CountPendingErrors reports how many per-operation failures await draining.
func (s *Session) CountPendingErrors() int {
	return s.errors.CountErrors()
}

// GetPendingErrors transfers the collected failures to the caller and reports
// whether the collector dropped any.
func (s *Session) GetPendingErrors(errs *[]*batcher.Error, overflowed *bool) {
	s.errors.Drain(errs, overflowed)
}

// Close aborts any mutations still buffered in the current batcher, with a
// warning. Batches already in flight keep draining against the shared error
// collector.
func (s *Session) Close() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current.HasPendingOperations() {
		s.logger.Log("Closing session with pending operations")
	}
	current.Abort()
}
