package tabletclient

import (
	"github.com/zikwall/tabletstore-client/src/batcher"
	"github.com/zikwall/tabletstore-client/src/cx"
)

var _ batcher.Mutation = (*Insert)(nil)

// Insert is a buffered row insert. Fill the row through Row(), then hand the
// insert to Session.Apply; the session owns it from that point on.
type Insert struct {
	table *Table
	row   *cx.Row
}

// Row gives access to the mutation's values.
func (in *Insert) Row() *cx.Row {
	return in.row
}

// TabletID routes the insert to its table's tablet.
func (in *Insert) TabletID() string {
	return in.table.tabletID
}

// Schema of the destination table.
func (in *Insert) Schema() cx.Schema {
	return in.table.schema
}

func (in *Insert) String() string {
	return "INSERT " + in.table.name + " " + in.row.String()
}
