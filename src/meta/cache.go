// Package meta caches tablet locations and tablet-server handles so the
// client does not ask the master about every write or scan.
package meta

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

// Cache maps tablet ids to RemoteTablet entries and shares tablet-server
// handles between tablets hosted on the same server. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	tablets  map[string]*RemoteTablet
	tservers map[string]*RemoteTabletServer
}

func NewCache() *Cache {
	return &Cache{
		tablets:  map[string]*RemoteTablet{},
		tservers: map[string]*RemoteTabletServer{},
	}
}

// LookupTablet returns the cache entry for a tablet, creating it when absent.
// The table name is remembered so a later Refresh knows what to ask the
// master about.
func (c *Cache) LookupTablet(tableName, tabletID string) *RemoteTablet {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tablets[tabletID]
	if !ok {
		t = &RemoteTablet{cache: c, tableName: tableName, tabletID: tabletID}
		c.tablets[tabletID] = t
	}
	return t
}

// LookupTabletByID returns an already-known tablet, or nil. Entries appear
// when a table is opened.
func (c *Cache) LookupTabletByID(tabletID string) *RemoteTablet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tablets[tabletID]
}

func (c *Cache) tserver(host string, port int) *RemoteTabletServer {
	key := net.JoinHostPort(host, strconv.Itoa(port))
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.tservers[key]
	if !ok {
		ts = &RemoteTabletServer{host: host, port: port}
		c.tservers[key] = ts
	}
	return ts
}

// RemoteTablet is the cached location state of one tablet.
type RemoteTablet struct {
	cache     *Cache
	tableName string
	tabletID  string

	mu       sync.Mutex
	replicas []*RemoteTabletServer
}

func (t *RemoteTablet) TabletID() string {
	return t.tabletID
}

// Refresh re-fetches the tablet's replica set from the master and invokes cb
// with the outcome. The callback may run on a separate goroutine.
func (t *RemoteTablet) Refresh(master rpc.MasterProxy, timeout time.Duration, cb func(error)) {
	go func() {
		cb(t.refresh(master, timeout))
	}()
}

func (t *RemoteTablet) refresh(master rpc.MasterProxy, timeout time.Duration) error {
	req := &wire.GetTableLocationsRequest{Table: wire.TableIdent{TableName: t.tableName}}
	resp := &wire.GetTableLocationsResponse{}
	ctrl := rpc.NewController()
	ctrl.SetTimeout(timeout)
	if err := master.GetTableLocations(req, resp, ctrl); err != nil {
		return err
	}
	if resp.Error != nil {
		return wire.StatusFromError(resp.Error)
	}
	for _, loc := range resp.TabletLocations {
		if loc.TabletID != t.tabletID {
			continue
		}
		replicas := make([]*RemoteTabletServer, 0, len(loc.Replicas))
		for _, r := range loc.Replicas {
			replicas = append(replicas, t.cache.tserver(r.Host, r.Port))
		}
		t.mu.Lock()
		t.replicas = replicas
		t.mu.Unlock()
		return nil
	}
	t.mu.Lock()
	t.replicas = nil
	t.mu.Unlock()
	return nil
}

// Replica returns the i-th known replica, or nil when there are fewer.
// The client always consults replica 0; there is no load balancing.
func (t *RemoteTablet) Replica(i int) *RemoteTabletServer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.replicas) {
		return nil
	}
	return t.replicas[i]
}

// RemoteTabletServer is a cached handle on one tablet server, with a lazily
// built service proxy.
type RemoteTabletServer struct {
	host string
	port int

	mu    sync.Mutex
	proxy rpc.TabletServerProxy
}

func (ts *RemoteTabletServer) Addr() string {
	return fmt.Sprintf("%s:%d", ts.host, ts.port)
}

// RefreshProxy resolves the server address and rebuilds the service proxy,
// reporting through cb. The callback may run on a separate goroutine.
func (ts *RemoteTabletServer) RefreshProxy(messenger rpc.Messenger, resolver rpc.Resolver, cb func(error)) {
	go func() {
		cb(ts.refreshProxy(messenger, resolver))
	}()
}

func (ts *RemoteTabletServer) refreshProxy(messenger rpc.Messenger, resolver rpc.Resolver) error {
	addrs, err := resolver.Resolve(ts.Addr(), ts.port)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return cx.NewNotFound("tablet server address " + ts.Addr() + " resolved to nothing")
	}
	proxy := messenger.TabletServerProxy(addrs[0])
	ts.mu.Lock()
	ts.proxy = proxy
	ts.mu.Unlock()
	return nil
}

// Proxy returns the last proxy built by RefreshProxy, or nil.
func (ts *RemoteTabletServer) Proxy() rpc.TabletServerProxy {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.proxy
}
