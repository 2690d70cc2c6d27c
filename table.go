package tabletclient

import (
	"sync"
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

const openTablePollInterval = 100 * time.Millisecond

// CreateTableOptions tunes CreateTable.
type CreateTableOptions struct {
	splitKeys      []string
	waitAssignment bool
}

func NewCreateTableOptions() *CreateTableOptions {
	return &CreateTableOptions{waitAssignment: true}
}

// WithSplitKeys pre-splits the new table at the given boundaries.
func (o *CreateTableOptions) WithSplitKeys(keys []string) *CreateTableOptions {
	o.splitKeys = keys
	return o
}

// WaitAssignment controls whether CreateTable blocks until tablets are
// assigned. Default true.
func (o *CreateTableOptions) WaitAssignment(wait bool) *CreateTableOptions {
	o.waitAssignment = wait
	return o
}

// Table is a user-visible handle on one table: its cached schema, its single
// tablet and a lazily built tablet-server proxy.
type Table struct {
	client *Client
	name   string
	schema cx.Schema

	tabletID string

	mu    sync.Mutex
	proxy rpc.TabletServerProxy
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Schema() cx.Schema {
	return t.schema
}

// TabletID returns the id of the table's tablet.
func (t *Table) TabletID() string {
	return t.tabletID
}

// open polls the master for the table's tablet locations until at least one
// tablet is running, bounded by the client's admin timeout, and records the
// first tablet. The client only supports single-tablet tables; a table that
// reports more is rejected.
func (t *Table) open() error {
	req := &wire.GetTableLocationsRequest{Table: wire.TableIdent{TableName: t.name}}
	resp := &wire.GetTableLocationsResponse{}
	deadline := time.Now().Add(t.client.options.adminTimeout)
	for {
		*resp = wire.GetTableLocationsResponse{}
		ctrl := rpc.NewController()
		ctrl.SetTimeout(t.client.options.adminTimeout)
		if err := t.client.masterProxy.GetTableLocations(req, resp, ctrl); err != nil {
			return err
		}
		if resp.Error != nil {
			return wire.StatusFromError(resp.Error)
		}
		if len(resp.TabletLocations) > 0 {
			break
		}
		if !time.Now().Before(deadline) {
			return cx.NewTimedOut("timed out waiting for tablet locations of table " + t.name)
		}
		time.Sleep(openTablePollInterval)
	}

	if n := len(resp.TabletLocations); n != 1 {
		return cx.NewErrorf(cx.CodeIllegalState,
			"table %s has %d tablets, only one tablet per table is supported", t.name, n)
	}
	t.tabletID = resp.TabletLocations[0].TabletID
	t.client.metaCache.LookupTablet(t.name, t.tabletID)
	if t.client.options.isDebug {
		t.client.logger.Logf("Open Table %s, found tablet=%s", t.name, t.tabletID)
	}
	return nil
}

// Proxy returns the tablet-server proxy for the table's tablet, building it
// on first use.
func (t *Table) Proxy() (rpc.TabletServerProxy, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.proxy != nil {
		return t.proxy, nil
	}
	proxy, err := t.client.GetTabletProxy(t.tabletID)
	if err != nil {
		return nil, err
	}
	t.proxy = proxy
	return t.proxy, nil
}

// NewInsert starts an insert mutation against this table.
func (t *Table) NewInsert() *Insert {
	return &Insert{table: t, row: cx.NewRow(t.schema)}
}
