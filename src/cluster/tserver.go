package cluster

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

const defaultScanPageRows = 100

// preallocRows mirrors the log-preallocation behavior: with preallocation on,
// each tablet reserves row storage up front.
const preallocRows = 64

// FakeTabletServer is an in-process data-plane service implementing the
// rpc.TabletServerProxy contract: sorted in-memory rows per tablet, write
// with per-row duplicate detection, and cursor-based scans.
type FakeTabletServer struct {
	mu       sync.Mutex
	rows     map[string]map[string]cx.Vector
	schemas  map[string]cx.Schema
	scanners map[string]*scanCursor
	writeLog []*wire.WriteRequest
	holdCh   chan struct{}

	closeCalls cx.Countable
}

type scanCursor struct {
	rows     []cx.Vector
	pageRows int
}

func NewFakeTabletServer() *FakeTabletServer {
	return &FakeTabletServer{
		rows:       map[string]map[string]cx.Vector{},
		schemas:    map[string]cx.Schema{},
		scanners:   map[string]*scanCursor{},
		closeCalls: cx.NewUint64Counter(),
	}
}

func (ts *FakeTabletServer) Write(req *wire.WriteRequest, resp *wire.WriteResponse, _ *rpc.Controller) error {
	ts.mu.Lock()
	hold := ts.holdCh
	ts.mu.Unlock()
	if hold != nil {
		<-hold
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(req.Schema.Columns) == 0 {
		resp.Error = wire.NewError(cx.NewInvalidArgument("write carries no schema"))
		return nil
	}
	tablet, ok := ts.rows[req.TabletID]
	if !ok {
		if LogPreallocateSegments {
			tablet = make(map[string]cx.Vector, preallocRows)
		} else {
			tablet = map[string]cx.Vector{}
		}
		ts.rows[req.TabletID] = tablet
		ts.schemas[req.TabletID] = req.Schema
	}
	for i, row := range req.Rows {
		key := cx.EncodedKey(req.Schema, row)
		if _, dup := tablet[key]; dup {
			resp.PerRowErrors = append(resp.PerRowErrors, wire.PerRowError{
				RowIndex: i,
				Error:    *wire.NewError(cx.NewError(cx.CodeAlreadyPresent, "key already present")),
			})
			continue
		}
		tablet[key] = row
	}
	ts.writeLog = append(ts.writeLog, req)
	return nil
}

func (ts *FakeTabletServer) Scan(req *wire.ScanRequest, resp *wire.ScanResponse, _ *rpc.Controller) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if req.CloseScanner {
		ts.closeCalls.Inc()
		if _, ok := ts.scanners[req.ScannerID]; !ok {
			resp.Error = wire.NewError(cx.NewNotFound("unknown scanner " + req.ScannerID))
			return nil
		}
		delete(ts.scanners, req.ScannerID)
		return nil
	}

	if req.NewScanRequest != nil {
		return ts.openScanner(req, resp)
	}

	cursor, ok := ts.scanners[req.ScannerID]
	if !ok {
		resp.Error = wire.NewError(cx.NewNotFound("unknown scanner " + req.ScannerID))
		return nil
	}
	ts.fillPage(cursor, resp)
	resp.ScannerID = req.ScannerID
	return nil
}

func (ts *FakeTabletServer) openScanner(req *wire.ScanRequest, resp *wire.ScanResponse) error {
	open := req.NewScanRequest
	schema, hasTablet := ts.schemas[open.TabletID]

	var matched []cx.Vector
	if hasTablet {
		tablet := ts.rows[open.TabletID]
		keys := make([]string, 0, len(tablet))
		for key := range tablet {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			row := tablet[key]
			ok, err := matchesPredicates(schema, row, open.RangePredicates)
			if err != nil {
				resp.Error = wire.NewError(err)
				return nil
			}
			if !ok {
				continue
			}
			projected, err := projectRow(schema, row, open.ProjectedColumns)
			if err != nil {
				resp.Error = wire.NewError(err)
				return nil
			}
			matched = append(matched, projected)
		}
	}

	cursor := &scanCursor{rows: matched, pageRows: pageRows(req.BatchSizeBytes)}
	ts.fillPage(cursor, resp)
	if resp.HasMoreResults {
		resp.ScannerID = uuid.NewString()
		ts.scanners[resp.ScannerID] = cursor
	}
	return nil
}

func (ts *FakeTabletServer) fillPage(cursor *scanCursor, resp *wire.ScanResponse) {
	n := cursor.pageRows
	if n > len(cursor.rows) {
		n = len(cursor.rows)
	}
	page := cursor.rows[:n]
	cursor.rows = cursor.rows[n:]
	if len(page) > 0 {
		resp.Data = &wire.RowBlock{NumRows: len(page), Rows: page}
	}
	resp.HasMoreResults = len(cursor.rows) > 0
}

func (ts *FakeTabletServer) ScanAsync(req *wire.ScanRequest, resp *wire.ScanResponse, ctrl *rpc.Controller, callback func()) {
	go func() {
		ctrl.SetErr(ts.Scan(req, resp, ctrl))
		callback()
	}()
}

func pageRows(batchSizeBytes uint32) int {
	if batchSizeBytes == 0 {
		return defaultScanPageRows
	}
	n := int(batchSizeBytes) / 64
	if n < 1 {
		n = 1
	}
	return n
}

func projectRow(schema cx.Schema, row cx.Vector, projection []cx.ColumnSchema) (cx.Vector, error) {
	if len(projection) == 0 {
		out := make(cx.Vector, len(row))
		copy(out, row)
		return out, nil
	}
	out := make(cx.Vector, 0, len(projection))
	for _, col := range projection {
		idx := schema.ColumnIndex(col.Name)
		if idx < 0 {
			return nil, cx.NewErrorf(cx.CodeInvalidArgument, "unknown column %q in projection", col.Name)
		}
		out = append(out, row[idx])
	}
	return out, nil
}

func matchesPredicates(schema cx.Schema, row cx.Vector, predicates []wire.ColumnRangePredicate) (bool, error) {
	for _, pred := range predicates {
		idx := schema.ColumnIndex(pred.ColumnName)
		if idx < 0 {
			return false, cx.NewErrorf(cx.CodeInvalidArgument, "unknown column %q in predicate", pred.ColumnName)
		}
		value := cx.EncodeValue(row[idx])
		if pred.LowerBound != nil && value < cx.EncodeValue(pred.LowerBound) {
			return false, nil
		}
		if pred.UpperBound != nil && value > cx.EncodeValue(pred.UpperBound) {
			return false, nil
		}
	}
	return true, nil
}

// RowCount reports how many rows a tablet holds.
func (ts *FakeTabletServer) RowCount(tabletID string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.rows[tabletID])
}

// Writes snapshots the write requests received so far.
func (ts *FakeTabletServer) Writes() []*wire.WriteRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]*wire.WriteRequest, len(ts.writeLog))
	copy(out, ts.writeLog)
	return out
}

// OpenScannerCount reports how many server-side cursors are live.
func (ts *FakeTabletServer) OpenScannerCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.scanners)
}

// CloseCalls counts close-scanner requests, successful or not.
func (ts *FakeTabletServer) CloseCalls() uint64 {
	return ts.closeCalls.Val()
}

// HoldWrites blocks incoming writes until the returned release func runs.
func (ts *FakeTabletServer) HoldWrites() func() {
	ch := make(chan struct{})
	ts.mu.Lock()
	ts.holdCh = ch
	ts.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			ts.mu.Lock()
			ts.holdCh = nil
			ts.mu.Unlock()
			close(ch)
		})
	}
}
