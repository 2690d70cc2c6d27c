// Package tabletclient is the client-side access layer of a distributed
// columnar tablet store: it creates and alters tables through the master,
// routes buffered write mutations to tablet servers, and streams query
// results through a scanner.
package tabletclient

import (
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/meta"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

const (
	createTableDeadline = 15 * time.Second
	alterTableDeadline  = 60 * time.Second
)

// Client is the shared entry point to one cluster. It owns the messenger,
// the master proxy, the metadata cache and the resolver; any number of
// sessions and tables share one client.
type Client struct {
	options     *Options
	logger      cx.Logger
	messenger   rpc.Messenger
	masterProxy rpc.MasterProxy
	metaCache   *meta.Cache
	resolver    rpc.Resolver
	initted     bool
}

// NewClient builds and initializes a client: the messenger is taken from the
// options or built internally, the master address is resolved (the first
// resolved address wins, with a warning when there are several) and the
// metadata cache is set up.
func NewClient(options *Options) (*Client, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if options.logger == nil {
		options.logger = cx.NewDefaultLogger()
	}
	c := &Client{
		options:  options,
		logger:   options.logger,
		resolver: rpc.NewResolver(),
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) init() error {
	if c.options.messenger != nil {
		c.messenger = c.options.messenger
	} else {
		messenger, err := rpc.NewMessengerBuilder("client").Build()
		if err != nil {
			return err
		}
		c.messenger = messenger
	}

	if c.options.masterAddr == "" {
		return cx.NewInvalidArgument("no master address specified")
	}
	addrs, err := c.resolver.Resolve(c.options.masterAddr, DefaultMasterPort)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return cx.NewInvalidArgument("no master address specified")
	}
	if len(addrs) > 1 {
		c.logger.Logf("master address %q resolved to multiple endpoints, using %s",
			c.options.masterAddr, addrs[0])
	}
	c.masterProxy = c.messenger.MasterProxy(addrs[0])
	c.metaCache = meta.NewCache()
	c.initted = true
	return nil
}

// Options return global options object
func (c *Client) Options() *Options {
	return c.options
}

// CreateTable asks the master for a new table, pre-split at opts' split keys.
// When opts waits for assignment, the call polls the master until tablet
// creation completes or a 15 second deadline passes.
func (c *Client) CreateTable(tableName string, schema cx.Schema, opts *CreateTableOptions) error {
	if opts == nil {
		opts = NewCreateTableOptions()
	}
	deadline := time.Now().Add(createTableDeadline)

	req := &wire.CreateTableRequest{
		Name:         tableName,
		Schema:       schema,
		PreSplitKeys: opts.splitKeys,
	}
	resp := &wire.CreateTableResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(c.options.adminTimeout)
	if err := c.masterProxy.CreateTable(req, resp, ctrl); err != nil {
		return err
	}
	if resp.Error != nil {
		return wire.StatusFromError(resp.Error)
	}

	if opts.waitAssignment {
		return RetryFunc(deadline,
			"Waiting on Create Table to be completed",
			"Timed out waiting for Table Creation",
			c.verboseLogger(),
			func(deadline time.Time) (bool, error) {
				return c.isCreateTableInProgress(tableName, deadline)
			})
	}
	return nil
}

// isCreateTableInProgress probes the master; retry stays true on any failure
// so transient master outages are ridden out by the caller's deadline.
func (c *Client) isCreateTableInProgress(tableName string, deadline time.Time) (bool, error) {
	req := &wire.IsCreateTableDoneRequest{Table: wire.TableIdent{TableName: tableName}}
	resp := &wire.IsCreateTableDoneResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(time.Until(deadline))
	if err := c.masterProxy.IsCreateTableDone(req, resp, ctrl); err != nil {
		return true, err
	}
	if resp.Error != nil {
		return true, wire.StatusFromError(resp.Error)
	}
	return !resp.Done, nil
}

// DeleteTable drops a table from the catalog.
func (c *Client) DeleteTable(tableName string) error {
	req := &wire.DeleteTableRequest{Table: wire.TableIdent{TableName: tableName}}
	resp := &wire.DeleteTableResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(c.options.adminTimeout)
	if err := c.masterProxy.DeleteTable(req, resp, ctrl); err != nil {
		return err
	}
	if resp.Error != nil {
		return wire.StatusFromError(resp.Error)
	}
	return nil
}

// AlterTable submits the accumulated schema changes and polls until the
// alteration completes or a 60 second deadline passes. When the builder
// renames the table, completion is probed under the new name.
func (c *Client) AlterTable(tableName string, alter *AlterTableBuilder) error {
	if alter == nil || !alter.HasChanges() {
		return cx.NewInvalidArgument("No alter steps provided")
	}
	deadline := time.Now().Add(alterTableDeadline)

	req := alter.request(tableName)
	resp := &wire.AlterTableResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(c.options.adminTimeout)
	if err := c.masterProxy.AlterTable(req, resp, ctrl); err != nil {
		return err
	}
	if resp.Error != nil {
		return wire.StatusFromError(resp.Error)
	}

	alterName := tableName
	if req.HasNewTableName() {
		alterName = req.NewTableName
	}
	return RetryFunc(deadline,
		"Waiting on Alter Table to be completed",
		"Timed out waiting for AlterTable",
		c.verboseLogger(),
		func(deadline time.Time) (bool, error) {
			return c.isAlterTableInProgress(alterName, deadline)
		})
}

func (c *Client) isAlterTableInProgress(tableName string, deadline time.Time) (bool, error) {
	req := &wire.IsAlterTableDoneRequest{Table: wire.TableIdent{TableName: tableName}}
	resp := &wire.IsAlterTableDoneResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(time.Until(deadline))
	if err := c.masterProxy.IsAlterTableDone(req, resp, ctrl); err != nil {
		return true, err
	}
	if resp.Error != nil {
		return true, wire.StatusFromError(resp.Error)
	}
	return !resp.Done, nil
}

// GetTableSchema fetches a table's schema with the server-assigned column
// IDs stripped.
func (c *Client) GetTableSchema(tableName string) (cx.Schema, error) {
	req := &wire.GetTableSchemaRequest{Table: wire.TableIdent{TableName: tableName}}
	resp := &wire.GetTableSchemaResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(c.options.adminTimeout)
	if err := c.masterProxy.GetTableSchema(req, resp, ctrl); err != nil {
		return cx.Schema{}, err
	}
	if resp.Error != nil {
		return cx.Schema{}, wire.StatusFromError(resp.Error)
	}
	return resp.Schema.StripIDs(), nil
}

// OpenTable fetches the table's schema and locations and returns a handle
// ready for sessions and scanners.
func (c *Client) OpenTable(tableName string) (*Table, error) {
	if !c.initted {
		panic("tabletclient: OpenTable on an uninitialized client")
	}
	schema, err := c.GetTableSchema(tableName)
	if err != nil {
		return nil, err
	}
	table := &Table{client: c, name: tableName, schema: schema}
	if err := table.open(); err != nil {
		return nil, err
	}
	return table, nil
}

// NewSession creates an initialized write session against this client.
func (c *Client) NewSession() *Session {
	if !c.initted {
		panic("tabletclient: NewSession on an uninitialized client")
	}
	s := newSession(c)
	s.init()
	return s
}

// GetTabletProxy resolves a tablet to its first replica's service proxy,
// refreshing the cached location and proxy on the way.
func (c *Client) GetTabletProxy(tabletID string) (rpc.TabletServerProxy, error) {
	tablet := c.metaCache.LookupTabletByID(tabletID)
	if tablet == nil {
		return nil, cx.NewNotFound("unknown tablet " + tabletID)
	}

	s := cx.NewSynchronizer()
	tablet.Refresh(c.masterProxy, c.options.adminTimeout, s.Callback())
	if err := s.Wait(); err != nil {
		return nil, err
	}

	ts := tablet.Replica(0)
	if ts == nil {
		return nil, cx.NewErrorf(cx.CodeNotFound, "No replicas for tablet %s", tabletID)
	}

	s.Reset()
	ts.RefreshProxy(c.messenger, c.resolver, s.Callback())
	if err := s.Wait(); err != nil {
		return nil, err
	}
	return ts.Proxy(), nil
}

// verboseLogger returns the logger for retry chatter, or nil outside debug
// mode so polling loops stay quiet.
func (c *Client) verboseLogger() cx.Logger {
	if c.options.isDebug {
		return c.logger
	}
	return nil
}
