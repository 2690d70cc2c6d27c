package rpc

import (
	"github.com/zikwall/tabletstore-client/src/wire"
)

// MasterProxy is the catalog and tablet-location authority as seen by the
// client. Implementations fill resp and return only transport-level errors;
// semantic failures ride in the response's embedded Error.
type MasterProxy interface {
	CreateTable(req *wire.CreateTableRequest, resp *wire.CreateTableResponse, ctrl *Controller) error
	IsCreateTableDone(req *wire.IsCreateTableDoneRequest, resp *wire.IsCreateTableDoneResponse, ctrl *Controller) error
	AlterTable(req *wire.AlterTableRequest, resp *wire.AlterTableResponse, ctrl *Controller) error
	IsAlterTableDone(req *wire.IsAlterTableDoneRequest, resp *wire.IsAlterTableDoneResponse, ctrl *Controller) error
	DeleteTable(req *wire.DeleteTableRequest, resp *wire.DeleteTableResponse, ctrl *Controller) error
	GetTableSchema(req *wire.GetTableSchemaRequest, resp *wire.GetTableSchemaResponse, ctrl *Controller) error
	GetTableLocations(req *wire.GetTableLocationsRequest, resp *wire.GetTableLocationsResponse, ctrl *Controller) error
}

// TabletServerProxy is the data-plane service hosting tablet replicas.
// ScanAsync must record the outcome in ctrl before invoking callback, and the
// callback may run on a transport goroutine.
type TabletServerProxy interface {
	Scan(req *wire.ScanRequest, resp *wire.ScanResponse, ctrl *Controller) error
	ScanAsync(req *wire.ScanRequest, resp *wire.ScanResponse, ctrl *Controller, callback func())
	Write(req *wire.WriteRequest, resp *wire.WriteResponse, ctrl *Controller) error
}

// Messenger builds service proxies for remote addresses. The client builds a
// default HTTP messenger when none is injected; tests inject an in-process
// implementation.
type Messenger interface {
	MasterProxy(addr string) MasterProxy
	TabletServerProxy(addr string) TabletServerProxy
}
