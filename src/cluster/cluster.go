// Package cluster is an in-process master plus tablet server used by the
// client tests. Both services implement the client's proxy contracts
// directly, so a test wires them in through the messenger option and runs
// the full client path with no network.
package cluster

import (
	"net"
	"strconv"
	"time"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

const (
	// MasterAddr is where the in-process master pretends to listen.
	MasterAddr = "127.0.0.1:7051"

	tserverHost = "127.0.0.1"
	tserverPort = 7050
)

var (
	_ rpc.MasterProxy       = (*FakeMaster)(nil)
	_ rpc.TabletServerProxy = (*FakeTabletServer)(nil)
	_ rpc.Messenger         = (*Messenger)(nil)
)

// MiniCluster bundles one fake master and one fake tablet server.
type MiniCluster struct {
	master    *FakeMaster
	tserver   *FakeTabletServer
	messenger *Messenger
}

func NewMiniCluster() *MiniCluster {
	tserver := NewFakeTabletServer()
	master := NewFakeMaster(wire.Replica{Host: tserverHost, Port: tserverPort, Role: "LEADER"})
	return &MiniCluster{
		master:  master,
		tserver: tserver,
		messenger: &Messenger{
			master: master,
			tservers: map[string]*FakeTabletServer{
				tserverAddr(): tserver,
			},
		},
	}
}

func tserverAddr() string {
	return net.JoinHostPort(tserverHost, strconv.Itoa(tserverPort))
}

func (c *MiniCluster) Master() *FakeMaster {
	return c.master
}

func (c *MiniCluster) TabletServer() *FakeTabletServer {
	return c.tserver
}

// Messenger wires the fakes into a client via Options.SetMessenger.
func (c *MiniCluster) Messenger() rpc.Messenger {
	return c.messenger
}

// MasterAddr is the address to hand the client options.
func (c *MiniCluster) MasterAddr() string {
	return MasterAddr
}

// Messenger is the in-process rpc.Messenger over the fakes. Any address maps
// to the single master; tablet-server addresses must match a registered fake.
type Messenger struct {
	master   *FakeMaster
	tservers map[string]*FakeTabletServer
}

func (m *Messenger) MasterProxy(_ string) rpc.MasterProxy {
	return m.master
}

func (m *Messenger) TabletServerProxy(addr string) rpc.TabletServerProxy {
	if ts, ok := m.tservers[addr]; ok {
		return ts
	}
	return unreachableTserver{addr: addr}
}

// unreachableTserver stands in for an address nothing listens on; every call
// fails like a refused connection would.
type unreachableTserver struct {
	addr string
}

func (u unreachableTserver) err() error {
	return cx.NewErrorf(cx.CodeIOError, "no tablet server at %s", u.addr)
}

func (u unreachableTserver) Scan(_ *wire.ScanRequest, _ *wire.ScanResponse, _ *rpc.Controller) error {
	return u.err()
}

func (u unreachableTserver) ScanAsync(_ *wire.ScanRequest, _ *wire.ScanResponse, ctrl *rpc.Controller, callback func()) {
	ctrl.SetErr(u.err())
	go callback()
}

func (u unreachableTserver) Write(_ *wire.WriteRequest, _ *wire.WriteResponse, _ *rpc.Controller) error {
	return u.err()
}

// WaitForRunningTabletCount polls the master until the table reports count
// running tablets, filling resp with the final locations.
func WaitForRunningTabletCount(master rpc.MasterProxy, tableName string, count int, resp *wire.GetTableLocationsResponse) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		*resp = wire.GetTableLocationsResponse{}
		req := &wire.GetTableLocationsRequest{Table: wire.TableIdent{TableName: tableName}}
		ctrl := rpc.NewController()
		if err := master.GetTableLocations(req, resp, ctrl); err != nil {
			return err
		}
		if resp.Error != nil {
			return wire.StatusFromError(resp.Error)
		}
		if len(resp.TabletLocations) >= count {
			return nil
		}
		if !time.Now().Before(deadline) {
			return cx.NewErrorf(cx.CodeTimedOut,
				"table %s has %d running tablets, want %d", tableName, len(resp.TabletLocations), count)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
