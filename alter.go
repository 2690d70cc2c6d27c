package tabletclient

import (
	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/wire"
)

// AlterTableBuilder accumulates an ordered sequence of schema-change steps
// plus an optional table rename, to be submitted through Client.AlterTable.
type AlterTableBuilder struct {
	steps        []wire.AlterStep
	newTableName string
}

func NewAlterTableBuilder() *AlterTableBuilder {
	return &AlterTableBuilder{}
}

// Reset drops the accumulated schema steps.
func (a *AlterTableBuilder) Reset() {
	a.steps = nil
}

// HasChanges is true once the builder carries a rename or at least one step.
func (a *AlterTableBuilder) HasChanges() bool {
	return a.newTableName != "" || len(a.steps) > 0
}

// RenameTable renames the table as part of the alteration.
func (a *AlterTableBuilder) RenameTable(newName string) error {
	a.newTableName = newName
	return nil
}

// AddColumn adds a non-nullable column, which therefore must come with a
// default value for existing rows.
func (a *AlterTableBuilder) AddColumn(name string, dataType cx.DataType, defaultValue interface{}) error {
	if defaultValue == nil {
		return cx.NewInvalidArgument(
			"A new column must have a default value; use AddNullableColumn to add a NULLABLE column")
	}
	a.steps = append(a.steps, wire.AlterStep{
		Type: wire.StepAddColumn,
		AddColumn: &cx.ColumnSchema{
			Name:    name,
			Type:    dataType,
			Default: defaultValue,
		},
	})
	return nil
}

// AddNullableColumn adds a nullable column.
func (a *AlterTableBuilder) AddNullableColumn(name string, dataType cx.DataType) error {
	a.steps = append(a.steps, wire.AlterStep{
		Type: wire.StepAddColumn,
		AddColumn: &cx.ColumnSchema{
			Name:     name,
			Type:     dataType,
			Nullable: true,
		},
	})
	return nil
}

// DropColumn removes a column.
func (a *AlterTableBuilder) DropColumn(name string) error {
	a.steps = append(a.steps, wire.AlterStep{
		Type:           wire.StepDropColumn,
		DropColumnName: name,
	})
	return nil
}

// RenameColumn renames a column.
func (a *AlterTableBuilder) RenameColumn(oldName, newName string) error {
	a.steps = append(a.steps, wire.AlterStep{
		Type:         wire.StepRenameColumn,
		RenameColumn: &wire.RenameColumn{OldName: oldName, NewName: newName},
	})
	return nil
}

func (a *AlterTableBuilder) request(tableName string) *wire.AlterTableRequest {
	return &wire.AlterTableRequest{
		Table:        wire.TableIdent{TableName: tableName},
		Steps:        a.steps,
		NewTableName: a.newTableName,
	}
}
