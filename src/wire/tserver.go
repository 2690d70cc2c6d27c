package wire

import (
	"github.com/zikwall/tabletstore-client/src/cx"
)

// ColumnRangePredicate restricts a scan to rows whose column value falls in
// [LowerBound, UpperBound]. A nil bound is unbounded on that side.
type ColumnRangePredicate struct {
	ColumnName string      `json:"column"`
	LowerBound interface{} `json:"lower_bound,omitempty"`
	UpperBound interface{} `json:"upper_bound,omitempty"`
}

// NewScanRequest opens a server-side scan over one tablet.
type NewScanRequest struct {
	TabletID         string                 `json:"tablet_id"`
	ProjectedColumns []cx.ColumnSchema      `json:"projected_columns,omitempty"`
	RangePredicates  []ColumnRangePredicate `json:"range_predicates,omitempty"`
}

// ScanRequest either opens a scan (NewScanRequest set) or continues an open
// one by ScannerID. CloseScanner releases the server-side cursor.
type ScanRequest struct {
	NewScanRequest *NewScanRequest `json:"new_scan_request,omitempty"`
	ScannerID      string          `json:"scanner_id,omitempty"`
	BatchSizeBytes uint32          `json:"batch_size_bytes,omitempty"`
	CloseScanner   bool            `json:"close_scanner,omitempty"`
}

// RowBlock is one page of scan results. Rows follow the projection the scan
// was opened with.
type RowBlock struct {
	NumRows int         `json:"num_rows"`
	Rows    []cx.Vector `json:"rows"`
}

type ScanResponse struct {
	Error          *Error    `json:"error,omitempty"`
	ScannerID      string    `json:"scanner_id,omitempty"`
	HasMoreResults bool      `json:"has_more_results,omitempty"`
	Data           *RowBlock `json:"data,omitempty"`
}

// HasData reports whether this response carries a non-empty row block.
func (r *ScanResponse) HasData() bool {
	return r.Data != nil && r.Data.NumRows > 0
}

// ExtractRows appends the response block's rows to *rows, verifying each row
// matches the projection width. The vectors alias the response storage and
// stay valid only until the next scan call overwrites it.
func ExtractRows(projection cx.Schema, data *RowBlock, rows *[]cx.Vector) error {
	if data == nil {
		return nil
	}
	want := len(projection.Columns)
	for i, row := range data.Rows {
		if len(row) != want {
			return cx.NewErrorf(cx.CodeInvalidArgument,
				"row %d has %d columns, projection has %d", i, len(row), want)
		}
		*rows = append(*rows, row)
	}
	return nil
}

// WriteRequest applies a batch of row inserts to one tablet.
type WriteRequest struct {
	TabletID string      `json:"tablet_id"`
	Schema   cx.Schema   `json:"schema"`
	Rows     []cx.Vector `json:"rows"`
}

// PerRowError reports the failure of a single row within a write that was
// otherwise accepted.
type PerRowError struct {
	RowIndex int   `json:"row_index"`
	Error    Error `json:"error"`
}

type WriteResponse struct {
	Error        *Error        `json:"error,omitempty"`
	PerRowErrors []PerRowError `json:"per_row_errors,omitempty"`
}
