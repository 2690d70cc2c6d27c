package batcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikwall/tabletstore-client/src/buffer/cxmem"
	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

func testSchema() cx.Schema {
	return cx.NewSchema([]cx.ColumnSchema{
		{Name: "key", Type: cx.TypeUint32},
		{Name: "v", Type: cx.TypeString},
	}, 1)
}

type fakeMutation struct {
	tabletID string
	row      *cx.Row
}

func newFakeMutation(t *testing.T, tabletID string, key uint32) *fakeMutation {
	t.Helper()
	row := cx.NewRow(testSchema())
	require.NoError(t, row.SetUint32("key", key))
	require.NoError(t, row.SetString("v", "value"))
	return &fakeMutation{tabletID: tabletID, row: row}
}

func (m *fakeMutation) TabletID() string { return m.tabletID }

func (m *fakeMutation) Schema() cx.Schema { return m.row.Schema() }

func (m *fakeMutation) Row() *cx.Row { return m.row }

func (m *fakeMutation) String() string { return "INSERT " + m.tabletID + " " + m.row.String() }

// fakeTserver accepts writes and answers with a canned response.
type fakeTserver struct {
	mu           sync.Mutex
	writes       []*wire.WriteRequest
	err          error
	respError    *wire.Error
	perRowErrors []wire.PerRowError
}

func (f *fakeTserver) Scan(_ *wire.ScanRequest, _ *wire.ScanResponse, _ *rpc.Controller) error {
	return nil
}

func (f *fakeTserver) ScanAsync(_ *wire.ScanRequest, _ *wire.ScanResponse, _ *rpc.Controller, callback func()) {
	go callback()
}

func (f *fakeTserver) Write(req *wire.WriteRequest, resp *wire.WriteResponse, _ *rpc.Controller) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, req)
	resp.Error = f.respError
	resp.PerRowErrors = f.perRowErrors
	return nil
}

func (f *fakeTserver) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeSource struct {
	proxy rpc.TabletServerProxy
	err   error
}

func (s *fakeSource) GetTabletProxy(string) (rpc.TabletServerProxy, error) {
	return s.proxy, s.err
}

type fakeSink struct {
	finished chan *Batcher
}

func newFakeSink() *fakeSink {
	return &fakeSink{finished: make(chan *Batcher, 1)}
}

func (s *fakeSink) FlushFinished(b *Batcher) {
	s.finished <- b
}

func (s *fakeSink) waitFinished(t *testing.T) *Batcher {
	t.Helper()
	select {
	case b := <-s.finished:
		return b
	case <-time.After(time.Second):
		t.Fatal("flush never finished")
		return nil
	}
}

func newTestBatcher(source ProxySource, sink Sink, collector *ErrorCollector) *Batcher {
	return New(source, collector, sink, cxmem.NewBuffer(16), cx.NewDefaultLogger())
}

func TestBatcher_Accumulates(t *testing.T) {
	b := newTestBatcher(&fakeSource{}, newFakeSink(), NewErrorCollector(0))

	assert.False(t, b.HasPendingOperations())
	assert.Equal(t, 0, b.CountBufferedOperations())

	b.Add(newFakeMutation(t, "tablet-1", 1))
	b.Add(newFakeMutation(t, "tablet-1", 2))

	assert.True(t, b.HasPendingOperations())
	assert.Equal(t, 2, b.CountBufferedOperations())
}

func TestBatcher_AbortDropsEverything(t *testing.T) {
	tserver := &fakeTserver{}
	b := newTestBatcher(&fakeSource{proxy: tserver}, newFakeSink(), NewErrorCollector(0))

	b.Add(newFakeMutation(t, "tablet-1", 1))
	b.Abort()

	assert.False(t, b.HasPendingOperations())
	assert.Equal(t, 0, tserver.writeCount())
}

func TestBatcher_FlushDeliversAndNotifies(t *testing.T) {
	tserver := &fakeTserver{}
	sink := newFakeSink()
	b := newTestBatcher(&fakeSource{proxy: tserver}, sink, NewErrorCollector(0))

	b.Add(newFakeMutation(t, "tablet-1", 1))
	b.Add(newFakeMutation(t, "tablet-1", 2))

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())

	assert.Same(t, b, sink.waitFinished(t))
	require.NoError(t, flushed.Wait())
	require.Equal(t, 1, tserver.writeCount())
	assert.Len(t, tserver.writes[0].Rows, 2)
	assert.False(t, b.HasPendingOperations())
}

func TestBatcher_EmptyFlushCompletesImmediately(t *testing.T) {
	tserver := &fakeTserver{}
	sink := newFakeSink()
	b := newTestBatcher(&fakeSource{proxy: tserver}, sink, NewErrorCollector(0))

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())

	sink.waitFinished(t)
	require.NoError(t, flushed.Wait())
	assert.Equal(t, 0, tserver.writeCount())
}

func TestBatcher_GroupsPerTablet(t *testing.T) {
	tserver := &fakeTserver{}
	sink := newFakeSink()
	b := newTestBatcher(&fakeSource{proxy: tserver}, sink, NewErrorCollector(0))

	b.Add(newFakeMutation(t, "tablet-1", 1))
	b.Add(newFakeMutation(t, "tablet-2", 2))
	b.Add(newFakeMutation(t, "tablet-1", 3))

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())
	sink.waitFinished(t)
	require.NoError(t, flushed.Wait())

	require.Equal(t, 2, tserver.writeCount())
	byTablet := map[string]int{}
	for _, w := range tserver.writes {
		byTablet[w.TabletID] = len(w.Rows)
	}
	assert.Equal(t, map[string]int{"tablet-1": 2, "tablet-2": 1}, byTablet)
}

func TestBatcher_TransportFailureCollectsAllOps(t *testing.T) {
	tserver := &fakeTserver{err: cx.NewErrorf(cx.CodeIOError, "connection refused")}
	sink := newFakeSink()
	collector := NewErrorCollector(0)
	b := newTestBatcher(&fakeSource{proxy: tserver}, sink, collector)

	b.Add(newFakeMutation(t, "tablet-1", 1))
	b.Add(newFakeMutation(t, "tablet-1", 2))

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())
	sink.waitFinished(t)

	err := flushed.Wait()
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeIOError))
	assert.Equal(t, 2, collector.CountErrors())
	assert.False(t, b.HasPendingOperations())
}

func TestBatcher_PerRowErrorsAreCollectedNotReturned(t *testing.T) {
	tserver := &fakeTserver{perRowErrors: []wire.PerRowError{{
		RowIndex: 1,
		Error:    *wire.NewError(cx.NewError(cx.CodeAlreadyPresent, "key already present")),
	}}}
	sink := newFakeSink()
	collector := NewErrorCollector(0)
	b := newTestBatcher(&fakeSource{proxy: tserver}, sink, collector)

	first := newFakeMutation(t, "tablet-1", 1)
	second := newFakeMutation(t, "tablet-1", 2)
	b.Add(first)
	b.Add(second)

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())
	sink.waitFinished(t)
	require.NoError(t, flushed.Wait())

	var errs []*Error
	var overflowed bool
	collector.Drain(&errs, &overflowed)
	require.Len(t, errs, 1)
	assert.False(t, overflowed)
	assert.Equal(t, second.String(), errs[0].FailedOp().String())
	assert.True(t, cx.IsError(errs[0].Status(), cx.CodeAlreadyPresent))
}

func TestBatcher_ProxyLookupFailure(t *testing.T) {
	sink := newFakeSink()
	collector := NewErrorCollector(0)
	b := newTestBatcher(&fakeSource{err: cx.NewNotFound("no replicas")}, sink, collector)

	b.Add(newFakeMutation(t, "tablet-1", 1))

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())
	sink.waitFinished(t)

	err := flushed.Wait()
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeNotFound))
	assert.Equal(t, 1, collector.CountErrors())
}

func TestBatcher_SecondFlushPanics(t *testing.T) {
	sink := newFakeSink()
	b := newTestBatcher(&fakeSource{proxy: &fakeTserver{}}, sink, NewErrorCollector(0))

	flushed := cx.NewSynchronizer()
	b.FlushAsync(flushed.Callback())
	sink.waitFinished(t)
	require.NoError(t, flushed.Wait())

	require.Panics(t, func() { b.FlushAsync(nil) })
	require.Panics(t, func() { b.Add(newFakeMutation(t, "tablet-1", 1)) })
}

func TestErrorCollector_Overflow(t *testing.T) {
	collector := NewErrorCollector(2)
	for i := uint32(0); i < 3; i++ {
		collector.AddError(NewOpError(newFakeMutation(t, "tablet-1", i), cx.NewErrorf(cx.CodeIOError, "boom %d", i)))
	}
	assert.Equal(t, 2, collector.CountErrors())

	var errs []*Error
	var overflowed bool
	collector.Drain(&errs, &overflowed)
	assert.Len(t, errs, 2)
	assert.True(t, overflowed)
	assert.Equal(t, 0, collector.CountErrors())

	// The overflow flag resets with the drain.
	collector.Drain(&errs, &overflowed)
	assert.False(t, overflowed)
}
