package wire

import (
	"github.com/zikwall/tabletstore-client/src/cx"
)

// TableIdent names the table an operation applies to.
type TableIdent struct {
	TableName string `json:"table_name"`
}

type CreateTableRequest struct {
	Name         string    `json:"name"`
	Schema       cx.Schema `json:"schema"`
	PreSplitKeys []string  `json:"pre_split_keys,omitempty"`
}

type CreateTableResponse struct {
	Error *Error `json:"error,omitempty"`
}

type IsCreateTableDoneRequest struct {
	Table TableIdent `json:"table"`
}

type IsCreateTableDoneResponse struct {
	Error *Error `json:"error,omitempty"`
	Done  bool   `json:"done"`
}

type DeleteTableRequest struct {
	Table TableIdent `json:"table"`
}

type DeleteTableResponse struct {
	Error *Error `json:"error,omitempty"`
}

type GetTableSchemaRequest struct {
	Table TableIdent `json:"table"`
}

type GetTableSchemaResponse struct {
	Error  *Error    `json:"error,omitempty"`
	Schema cx.Schema `json:"schema"`
}

// AlterStepType enumerates the schema-change steps an alter can carry.
type AlterStepType string

const (
	StepAddColumn    AlterStepType = "ADD_COLUMN"
	StepDropColumn   AlterStepType = "DROP_COLUMN"
	StepRenameColumn AlterStepType = "RENAME_COLUMN"
)

type RenameColumn struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type AlterStep struct {
	Type           AlterStepType    `json:"type"`
	AddColumn      *cx.ColumnSchema `json:"add_column,omitempty"`
	DropColumnName string           `json:"drop_column_name,omitempty"`
	RenameColumn   *RenameColumn    `json:"rename_column,omitempty"`
}

type AlterTableRequest struct {
	Table        TableIdent  `json:"table"`
	Steps        []AlterStep `json:"alter_schema_steps,omitempty"`
	NewTableName string      `json:"new_table_name,omitempty"`
}

func (r *AlterTableRequest) HasNewTableName() bool {
	return r.NewTableName != ""
}

type AlterTableResponse struct {
	Error *Error `json:"error,omitempty"`
}

type IsAlterTableDoneRequest struct {
	Table TableIdent `json:"table"`
}

type IsAlterTableDoneResponse struct {
	Error *Error `json:"error,omitempty"`
	Done  bool   `json:"done"`
}

type GetTableLocationsRequest struct {
	Table    TableIdent `json:"table"`
	StartKey string     `json:"start_key,omitempty"`
	// MaxReturnedLocations is optional; nil means the server default.
	// An explicit zero is rejected by the master.
	MaxReturnedLocations *uint32 `json:"max_returned_locations,omitempty"`
}

type GetTableLocationsResponse struct {
	Error           *Error            `json:"error,omitempty"`
	TabletLocations []TabletLocations `json:"tablet_locations,omitempty"`
}

// Replica is one hosted copy of a tablet.
type Replica struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Role string `json:"role,omitempty"`
}

// TabletLocations describes a tablet's key range and where it is hosted.
// StartKey == "" means the start of the keyspace, EndKey == "" the end.
type TabletLocations struct {
	TabletID string    `json:"tablet_id"`
	StartKey string    `json:"start_key"`
	EndKey   string    `json:"end_key"`
	Replicas []Replica `json:"replicas,omitempty"`
}
