package tabletclient

import (
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

// TODO: make the scan timeout configurable through the scanner API.
const scanCallTimeout = 5 * time.Second

// Scanner streams rows out of one tablet through a server-side cursor.
// Configure it, Open it, pull pages with NextBatch while HasMoreRows, then
// Close. A scanner is single-goroutine; only the close RPC runs detached.
type Scanner struct {
	table      *Table
	projection cx.Schema

	nextReq      wire.ScanRequest
	lastResponse wire.ScanResponse
	controller   *rpc.Controller

	open       bool
	dataInOpen bool
}

// NewScanner builds a scanner over the table projecting all its columns.
func NewScanner(table *Table) *Scanner {
	s := &Scanner{
		table:      table,
		projection: table.schema,
		controller: rpc.NewController(),
	}
	s.newScanRequest().ProjectedColumns = table.schema.Columns
	return s
}

func (s *Scanner) newScanRequest() *wire.NewScanRequest {
	if s.nextReq.NewScanRequest == nil {
		s.nextReq.NewScanRequest = &wire.NewScanRequest{}
	}
	return s.nextReq.NewScanRequest
}

// SetProjection restricts the scan to the given columns. Only legal before
// Open.
func (s *Scanner) SetProjection(projection cx.Schema) {
	if s.open {
		panic("tabletclient: scanner already open")
	}
	s.projection = projection
	s.newScanRequest().ProjectedColumns = projection.Columns
}

// SetBatchSizeBytes bounds how much data the server packs into one response.
// Only legal before Open.
func (s *Scanner) SetBatchSizeBytes(batchSize uint32) {
	if s.open {
		panic("tabletclient: scanner already open")
	}
	s.nextReq.BatchSizeBytes = batchSize
}

// AddConjunctPredicate restricts the scan to rows matching the predicate,
// and-ed with any predicates already added. Only legal before Open.
func (s *Scanner) AddConjunctPredicate(pred wire.ColumnRangePredicate) {
	if s.open {
		panic("tabletclient: scanner already open")
	}
	scan := s.newScanRequest()
	scan.RangePredicates = append(scan.RangePredicates, pred)
}

// Open starts the scan on the tablet's server. On success the scanner either
// holds inline data, a server cursor id for the following pages, or neither
// when the scan matched nothing.
func (s *Scanner) Open() error {
	if s.open {
		panic("tabletclient: scanner already open")
	}

	s.newScanRequest().TabletID = s.table.tabletID

	s.controller.Reset()
	s.controller.SetTimeout(scanCallTimeout)

	proxy, err := s.table.Proxy()
	if err != nil {
		return err
	}
	if err := proxy.Scan(&s.nextReq, &s.lastResponse, s.controller); err != nil {
		return err
	}
	if err := s.checkForErrors(); err != nil {
		return err
	}
	s.dataInOpen = s.lastResponse.HasData()

	s.nextReq.NewScanRequest = nil
	if s.lastResponse.HasMoreResults {
		s.nextReq.ScannerID = s.lastResponse.ScannerID
		s.debugf("Started scanner %s", s.lastResponse.ScannerID)
	} else {
		s.debugf("Scanner matched no further rows, no scanner ID assigned.")
	}

	s.open = true
	return nil
}

// HasMoreRows reports whether NextBatch can produce anything.
func (s *Scanner) HasMoreRows() bool {
	if !s.open {
		panic("tabletclient: scanner not open")
	}
	return s.dataInOpen || s.lastResponse.HasMoreResults
}

// NextBatch yields the next page of rows. The vectors alias the last
// response's storage and stay valid only until the next NextBatch call.
func (s *Scanner) NextBatch(rows *[]cx.Vector) error {
	if !s.open {
		panic("tabletclient: scanner not open")
	}
	if !s.dataInOpen {
		s.controller.Reset()
		s.controller.SetTimeout(scanCallTimeout)
		*rows = (*rows)[:0]
		proxy, err := s.table.Proxy()
		if err != nil {
			return err
		}
		s.lastResponse = wire.ScanResponse{}
		if err := proxy.Scan(&s.nextReq, &s.lastResponse, s.controller); err != nil {
			return err
		}
		if err := s.checkForErrors(); err != nil {
			return err
		}
	} else {
		s.dataInOpen = false
	}

	return wire.ExtractRows(s.projection, s.lastResponse.Data, rows)
}

// scanCloser owns everything the close RPC needs. The scanner itself may be
// long gone by the time the call completes, so the closer must not touch it.
type scanCloser struct {
	req        wire.ScanRequest
	resp       wire.ScanResponse
	controller *rpc.Controller
	scannerID  string
	logger     cx.Logger
}

func (c *scanCloser) callback() {
	if err := c.controller.Err(); err != nil {
		c.logger.Logf("Couldn't close scanner %s: %v", c.scannerID, err)
	}
}

// Close releases the server-side cursor, fire-and-forget: the RPC runs
// against state owned by a detached closer and its failure is only logged.
// A scan that never got a cursor closes locally. Close is idempotent.
func (s *Scanner) Close() {
	if !s.open {
		return
	}

	if s.nextReq.ScannerID == "" {
		// The open response already held every matching row (possibly none),
		// so the server never allocated a cursor; nothing to close remotely.
		s.open = false
		return
	}

	closer := &scanCloser{
		req: wire.ScanRequest{
			ScannerID:      s.nextReq.ScannerID,
			BatchSizeBytes: 0,
			CloseScanner:   true,
		},
		controller: rpc.NewController(),
		scannerID:  s.nextReq.ScannerID,
		logger:     s.table.client.logger,
	}
	closer.controller.SetTimeout(scanCallTimeout)

	proxy, err := s.table.Proxy()
	if err != nil {
		s.table.client.logger.Logf("Couldn't close scanner %s: %v", closer.scannerID, err)
	} else {
		proxy.ScanAsync(&closer.req, &closer.resp, closer.controller, closer.callback)
	}

	s.nextReq = wire.ScanRequest{}
	s.open = false
}

func (s *Scanner) checkForErrors() error {
	if s.lastResponse.Error == nil {
		return nil
	}
	return wire.StatusFromError(s.lastResponse.Error)
}

func (s *Scanner) debugf(format string, v ...interface{}) {
	if s.table.client.options.isDebug {
		s.table.client.logger.Logf(format, v...)
	}
}
