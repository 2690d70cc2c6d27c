package cluster

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

// FakeMaster is an in-process catalog and tablet-location authority
// implementing the rpc.MasterProxy contract directly. Semantic failures ride
// in the response's embedded error, like a real master's would; the returned
// error is reserved for transport problems, which in-process never happen.
type FakeMaster struct {
	mu           sync.Mutex
	tables       map[string]*tableEntry
	replica      wire.Replica
	nextColumnID int32
	restarts     cx.Countable
}

type tableEntry struct {
	name       string
	schema     cx.Schema
	tablets    []wire.TabletLocations
	assignDone time.Time
	alterDone  time.Time
}

func NewFakeMaster(replica wire.Replica) *FakeMaster {
	return &FakeMaster{
		tables:   map[string]*tableEntry{},
		replica:  replica,
		restarts: cx.NewUint64Counter(),
	}
}

// Restart simulates a master crash and recovery: tables survive, but
// assignment progress made so far is lost and starts over.
func (m *FakeMaster) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts.Inc()
	now := time.Now()
	for _, entry := range m.tables {
		if entry.assignDone.After(now) {
			entry.assignDone = now.Add(HeartbeatInterval)
		}
		if entry.alterDone.After(now) {
			entry.alterDone = now.Add(HeartbeatInterval)
		}
	}
}

// Restarts counts how many times Restart ran.
func (m *FakeMaster) Restarts() uint64 {
	return m.restarts.Val()
}

func (m *FakeMaster) CreateTable(req *wire.CreateTableRequest, resp *wire.CreateTableResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Name == "" {
		resp.Error = wire.NewError(cx.NewInvalidArgument("table name must not be empty"))
		return nil
	}
	if len(req.Schema.Columns) == 0 || req.Schema.NumKeyColumns <= 0 {
		resp.Error = wire.NewError(cx.NewInvalidArgument("table schema must have at least one key column"))
		return nil
	}
	if _, ok := m.tables[req.Name]; ok {
		resp.Error = wire.NewError(cx.NewError(cx.CodeAlreadyPresent, "table "+req.Name+" already exists"))
		return nil
	}

	schema := req.Schema.StripIDs()
	for i := range schema.Columns {
		m.nextColumnID++
		schema.Columns[i].ID = m.nextColumnID
	}

	splits := make([]string, len(req.PreSplitKeys))
	copy(splits, req.PreSplitKeys)
	sort.Strings(splits)

	tablets := make([]wire.TabletLocations, 0, len(splits)+1)
	start := ""
	for _, split := range splits {
		tablets = append(tablets, m.newTablet(start, split))
		start = split
	}
	tablets = append(tablets, m.newTablet(start, ""))

	m.tables[req.Name] = &tableEntry{
		name:       req.Name,
		schema:     schema,
		tablets:    tablets,
		assignDone: time.Now().Add(HeartbeatInterval),
	}
	return nil
}

func (m *FakeMaster) newTablet(startKey, endKey string) wire.TabletLocations {
	return wire.TabletLocations{
		TabletID: uuid.NewString(),
		StartKey: startKey,
		EndKey:   endKey,
		Replicas: []wire.Replica{m.replica},
	}
}

func (m *FakeMaster) IsCreateTableDone(req *wire.IsCreateTableDoneRequest, resp *wire.IsCreateTableDoneResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tables[req.Table.TableName]
	if !ok {
		resp.Error = wire.NewError(cx.NewNotFound("table " + req.Table.TableName + " does not exist"))
		return nil
	}
	resp.Done = !entry.assignDone.After(time.Now())
	return nil
}

func (m *FakeMaster) AlterTable(req *wire.AlterTableRequest, resp *wire.AlterTableResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tables[req.Table.TableName]
	if !ok {
		resp.Error = wire.NewError(cx.NewNotFound("table " + req.Table.TableName + " does not exist"))
		return nil
	}

	schema := entry.schema
	for _, step := range req.Steps {
		var err error
		schema, err = m.applyStep(schema, step)
		if err != nil {
			resp.Error = wire.NewError(err)
			return nil
		}
	}

	if req.HasNewTableName() {
		if _, taken := m.tables[req.NewTableName]; taken {
			resp.Error = wire.NewError(cx.NewError(cx.CodeAlreadyPresent, "table "+req.NewTableName+" already exists"))
			return nil
		}
		delete(m.tables, entry.name)
		entry.name = req.NewTableName
		m.tables[entry.name] = entry
	}

	entry.schema = schema
	entry.alterDone = time.Now().Add(HeartbeatInterval)
	return nil
}

func (m *FakeMaster) applyStep(schema cx.Schema, step wire.AlterStep) (cx.Schema, error) {
	columns := make([]cx.ColumnSchema, len(schema.Columns))
	copy(columns, schema.Columns)
	out := cx.Schema{Columns: columns, NumKeyColumns: schema.NumKeyColumns}

	switch step.Type {
	case wire.StepAddColumn:
		if step.AddColumn == nil {
			return out, cx.NewInvalidArgument("ADD_COLUMN step without a column")
		}
		if out.ColumnIndex(step.AddColumn.Name) >= 0 {
			return out, cx.NewError(cx.CodeAlreadyPresent, "column "+step.AddColumn.Name+" already exists")
		}
		col := *step.AddColumn
		m.nextColumnID++
		col.ID = m.nextColumnID
		out.Columns = append(out.Columns, col)
	case wire.StepDropColumn:
		idx := out.ColumnIndex(step.DropColumnName)
		if idx < 0 {
			return out, cx.NewNotFound("column " + step.DropColumnName + " does not exist")
		}
		if idx < out.NumKeyColumns {
			return out, cx.NewInvalidArgument("cannot drop key column " + step.DropColumnName)
		}
		out.Columns = append(out.Columns[:idx], out.Columns[idx+1:]...)
	case wire.StepRenameColumn:
		if step.RenameColumn == nil {
			return out, cx.NewInvalidArgument("RENAME_COLUMN step without names")
		}
		idx := out.ColumnIndex(step.RenameColumn.OldName)
		if idx < 0 {
			return out, cx.NewNotFound("column " + step.RenameColumn.OldName + " does not exist")
		}
		if out.ColumnIndex(step.RenameColumn.NewName) >= 0 {
			return out, cx.NewError(cx.CodeAlreadyPresent, "column "+step.RenameColumn.NewName+" already exists")
		}
		out.Columns[idx].Name = step.RenameColumn.NewName
	default:
		return out, cx.NewInvalidArgument("unknown alter step type " + string(step.Type))
	}
	return out, nil
}

func (m *FakeMaster) IsAlterTableDone(req *wire.IsAlterTableDoneRequest, resp *wire.IsAlterTableDoneResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tables[req.Table.TableName]
	if !ok {
		resp.Error = wire.NewError(cx.NewNotFound("table " + req.Table.TableName + " does not exist"))
		return nil
	}
	resp.Done = !entry.alterDone.After(time.Now())
	return nil
}

func (m *FakeMaster) DeleteTable(req *wire.DeleteTableRequest, resp *wire.DeleteTableResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[req.Table.TableName]; !ok {
		resp.Error = wire.NewError(cx.NewNotFound("table " + req.Table.TableName + " does not exist"))
		return nil
	}
	delete(m.tables, req.Table.TableName)
	return nil
}

func (m *FakeMaster) GetTableSchema(req *wire.GetTableSchemaRequest, resp *wire.GetTableSchemaResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tables[req.Table.TableName]
	if !ok {
		resp.Error = wire.NewError(cx.NewNotFound("table " + req.Table.TableName + " does not exist"))
		return nil
	}
	resp.Schema = entry.schema
	return nil
}

func (m *FakeMaster) GetTableLocations(req *wire.GetTableLocationsRequest, resp *wire.GetTableLocationsResponse, _ *rpc.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tables[req.Table.TableName]
	if !ok {
		resp.Error = wire.NewError(cx.NewNotFound("table " + req.Table.TableName + " does not exist"))
		return nil
	}
	if req.MaxReturnedLocations != nil && *req.MaxReturnedLocations == 0 {
		resp.Error = wire.NewError(cx.NewInvalidArgument("max_returned_locations must be greater than 0"))
		return nil
	}
	if entry.assignDone.After(time.Now()) {
		// Tablets are still being assigned; nothing is running yet.
		return nil
	}

	max := len(entry.tablets)
	if req.MaxReturnedLocations != nil {
		max = int(*req.MaxReturnedLocations)
	}
	for _, tablet := range entry.tablets {
		if len(resp.TabletLocations) >= max {
			break
		}
		// A tablet is relevant when its range ends past the start key.
		if req.StartKey != "" && tablet.EndKey != "" && tablet.EndKey <= req.StartKey {
			continue
		}
		resp.TabletLocations = append(resp.TabletLocations, tablet)
	}
	return nil
}
