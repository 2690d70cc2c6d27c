// Package batcher accumulates mutations for a single asynchronous flush.
// A session owns exactly one open batcher at a time and rotates in a fresh
// one whenever a flush starts; the flushed batcher drains on its own
// goroutine and reports back through the Sink.
package batcher

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

// Sink receives the end-of-flush notification. The session implements it to
// maintain its in-flight set. FlushFinished is invoked on the batcher's own
// flushing goroutine, never on the goroutine that called FlushAsync, and the
// batcher holds none of its locks while calling it.
type Sink interface {
	FlushFinished(b *Batcher)
}

// ProxySource resolves a tablet id to a tablet-server proxy. The client
// implements it on top of the metadata cache.
type ProxySource interface {
	GetTabletProxy(tabletID string) (rpc.TabletServerProxy, error)
}

type state int

const (
	stateOpen state = iota
	stateFlushing
	stateAborted
)

// Batcher is a bounded accumulator of mutations with a one-shot asynchronous
// flush. Add and the inspection methods are safe for concurrent use.
type Batcher struct {
	id        uuid.UUID
	source    ProxySource
	collector *ErrorCollector
	sink      Sink
	logger    cx.Logger

	mu      sync.Mutex
	state   state
	ops     []Mutation
	buffer  cx.Buffer
	timeout time.Duration
}

// New creates an open batcher draining into buffer. The collector is shared
// with the owning session and must stay usable after the session is gone.
func New(source ProxySource, collector *ErrorCollector, sink Sink, buffer cx.Buffer, logger cx.Logger) *Batcher {
	if logger == nil {
		logger = cx.NewDefaultLogger()
	}
	return &Batcher{
		id:        uuid.New(),
		source:    source,
		collector: collector,
		sink:      sink,
		logger:    logger,
		buffer:    buffer,
		timeout:   rpc.DefaultCallTimeout,
	}
}

// ID identifies the batcher in logs.
func (b *Batcher) ID() uuid.UUID {
	return b.id
}

// SetTimeoutMillis bounds each flush RPC issued by this batcher.
func (b *Batcher) SetTimeoutMillis(millis int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if millis > 0 {
		b.timeout = time.Duration(millis) * time.Millisecond
	}
}

// Add hands ownership of the mutation to the batcher. Adding to a batcher
// that already started flushing is a programming error.
func (b *Batcher) Add(op Mutation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateOpen {
		panic("batcher: Add after flush or abort")
	}
	b.ops = append(b.ops, op)
	b.buffer.Write(op.Row().Vector())
}

// HasPendingOperations is true while any mutation is buffered or in flight.
func (b *Batcher) HasPendingOperations() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops) > 0
}

// CountBufferedOperations returns how many mutations are buffered and not
// yet flushed.
func (b *Batcher) CountBufferedOperations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateOpen {
		return 0
	}
	return len(b.ops)
}

// Abort drops all buffered mutations without sending them.
func (b *Batcher) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateOpen {
		return
	}
	b.state = stateAborted
	b.ops = nil
	b.buffer.Flush()
}

// FlushAsync drains the batcher on a separate goroutine. When the flush
// completes the sink is notified first, then callback fires with the
// batch-level status. Per-operation failures go to the error collector and
// do not affect that status.
func (b *Batcher) FlushAsync(callback func(error)) {
	b.mu.Lock()
	if b.state != stateOpen {
		b.mu.Unlock()
		panic("batcher: FlushAsync on a flushed or aborted batcher")
	}
	b.state = stateFlushing
	ops := b.ops
	vectors := b.buffer.Read()
	b.buffer.Flush()
	timeout := b.timeout
	b.mu.Unlock()

	go b.flush(ops, vectors, timeout, callback)
}

func (b *Batcher) flush(ops []Mutation, vectors []cx.Vector, timeout time.Duration, callback func(error)) {
	batchErr := b.send(ops, vectors, timeout)

	b.mu.Lock()
	b.ops = nil
	b.mu.Unlock()

	if b.sink != nil {
		b.sink.FlushFinished(b)
	}
	if callback != nil {
		callback(batchErr)
	}
}

func (b *Batcher) send(ops []Mutation, vectors []cx.Vector, timeout time.Duration) error {
	if len(ops) == 0 {
		return nil
	}

	// The buffer engine and the op list are filled in lockstep by Add, so
	// vectors[i] belongs to ops[i]. Group per tablet preserving order.
	byTablet := make(map[string][]int)
	order := make([]string, 0, 1)
	for i, op := range ops {
		tabletID := op.TabletID()
		if _, ok := byTablet[tabletID]; !ok {
			order = append(order, tabletID)
		}
		byTablet[tabletID] = append(byTablet[tabletID], i)
	}

	var batchErr error
	for _, tabletID := range order {
		indexes := byTablet[tabletID]
		if err := b.sendToTablet(tabletID, ops, vectors, indexes, timeout); err != nil {
			// All operations of the failed tablet batch are recorded
			// individually; the batch-level status keeps the first failure.
			for _, i := range indexes {
				b.collector.AddError(NewOpError(ops[i], err))
			}
			if batchErr == nil {
				batchErr = err
			}
		}
	}
	return batchErr
}

func (b *Batcher) sendToTablet(tabletID string, ops []Mutation, vectors []cx.Vector, indexes []int, timeout time.Duration) error {
	proxy, err := b.source.GetTabletProxy(tabletID)
	if err != nil {
		return err
	}

	rows := make([]cx.Vector, 0, len(indexes))
	for _, i := range indexes {
		if i < len(vectors) {
			rows = append(rows, vectors[i])
		} else {
			rows = append(rows, ops[i].Row().Vector())
		}
	}

	req := &wire.WriteRequest{
		TabletID: tabletID,
		Schema:   ops[indexes[0]].Schema(),
		Rows:     rows,
	}
	resp := &wire.WriteResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(timeout)

	if err := proxy.Write(req, resp, ctrl); err != nil {
		return err
	}
	if resp.Error != nil {
		return wire.StatusFromError(resp.Error)
	}
	for _, rowErr := range resp.PerRowErrors {
		if rowErr.RowIndex < 0 || rowErr.RowIndex >= len(indexes) {
			continue
		}
		op := ops[indexes[rowErr.RowIndex]]
		e := rowErr.Error
		b.collector.AddError(NewOpError(op, wire.StatusFromError(&e)))
	}
	return nil
}
