package batcher

import (
	"github.com/zikwall/tabletstore-client/src/cx"
)

// Mutation is a single buffered write operation. The concrete type lives in
// the top-level package; the batcher only needs routing and row access.
type Mutation interface {
	// TabletID routes the mutation to its tablet.
	TabletID() string
	// Schema of the destination table.
	Schema() cx.Schema
	// Row gives the mutation's values.
	Row() *cx.Row
	// String renders the mutation for error messages.
	String() string
}
