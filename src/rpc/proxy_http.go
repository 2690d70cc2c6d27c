package rpc

import (
	"github.com/zikwall/tabletstore-client/src/wire"
)

type masterProxy struct {
	messenger *httpMessenger
	addr      string
}

func (p *masterProxy) call(method string, req, resp interface{}, ctrl *Controller) error {
	return p.messenger.invoke(p.addr, masterService, method, req, resp, ctrl)
}

func (p *masterProxy) CreateTable(req *wire.CreateTableRequest, resp *wire.CreateTableResponse, ctrl *Controller) error {
	return p.call("CreateTable", req, resp, ctrl)
}

func (p *masterProxy) IsCreateTableDone(req *wire.IsCreateTableDoneRequest, resp *wire.IsCreateTableDoneResponse, ctrl *Controller) error {
	return p.call("IsCreateTableDone", req, resp, ctrl)
}

func (p *masterProxy) AlterTable(req *wire.AlterTableRequest, resp *wire.AlterTableResponse, ctrl *Controller) error {
	return p.call("AlterTable", req, resp, ctrl)
}

func (p *masterProxy) IsAlterTableDone(req *wire.IsAlterTableDoneRequest, resp *wire.IsAlterTableDoneResponse, ctrl *Controller) error {
	return p.call("IsAlterTableDone", req, resp, ctrl)
}

func (p *masterProxy) DeleteTable(req *wire.DeleteTableRequest, resp *wire.DeleteTableResponse, ctrl *Controller) error {
	return p.call("DeleteTable", req, resp, ctrl)
}

func (p *masterProxy) GetTableSchema(req *wire.GetTableSchemaRequest, resp *wire.GetTableSchemaResponse, ctrl *Controller) error {
	return p.call("GetTableSchema", req, resp, ctrl)
}

func (p *masterProxy) GetTableLocations(req *wire.GetTableLocationsRequest, resp *wire.GetTableLocationsResponse, ctrl *Controller) error {
	return p.call("GetTableLocations", req, resp, ctrl)
}

type tserverProxy struct {
	messenger *httpMessenger
	addr      string
}

func (p *tserverProxy) Scan(req *wire.ScanRequest, resp *wire.ScanResponse, ctrl *Controller) error {
	return p.messenger.invoke(p.addr, tserverService, "Scan", req, resp, ctrl)
}

func (p *tserverProxy) ScanAsync(req *wire.ScanRequest, resp *wire.ScanResponse, ctrl *Controller, callback func()) {
	go func() {
		ctrl.SetErr(p.Scan(req, resp, ctrl))
		callback()
	}()
}

func (p *tserverProxy) Write(req *wire.WriteRequest, resp *wire.WriteResponse, ctrl *Controller) error {
	return p.messenger.invoke(p.addr, tserverService, "Write", req, resp, ctrl)
}
