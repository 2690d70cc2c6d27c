package cx

// DataType enumerates the column types the client understands.
// Row values and range predicates are checked against these.
type DataType int

const (
	TypeUint32 DataType = iota + 1
	TypeUint64
	TypeInt64
	TypeString
	TypeBool
)

func (t DataType) String() string {
	switch t {
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeInt64:
		return "int64"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	}
	return "unknown"
}

// ColumnSchema describes a single column. ID is assigned by the master and is
// only meaningful inside the cluster; client-facing schemas carry ID == 0.
type ColumnSchema struct {
	Name     string      `json:"name"`
	Type     DataType    `json:"type"`
	Nullable bool        `json:"nullable,omitempty"`
	Default  interface{} `json:"default,omitempty"`
	ID       int32       `json:"id,omitempty"`
}

// Schema is an ordered set of columns, the first NumKeyColumns of which form
// the row key.
type Schema struct {
	Columns       []ColumnSchema `json:"columns"`
	NumKeyColumns int            `json:"num_key_columns"`
}

func NewSchema(columns []ColumnSchema, numKeyColumns int) Schema {
	return Schema{Columns: columns, NumKeyColumns: numKeyColumns}
}

// ColumnIndex returns the position of the named column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// StripIDs returns a copy of the schema with the server-assigned column IDs
// removed. GetTableSchema uses it so user code never sees cluster internals.
func (s Schema) StripIDs() Schema {
	columns := make([]ColumnSchema, len(s.Columns))
	copy(columns, s.Columns)
	for i := range columns {
		columns[i].ID = 0
	}
	return Schema{Columns: columns, NumKeyColumns: s.NumKeyColumns}
}

// Projection builds a sub-schema from the named columns, in the given order.
func (s Schema) Projection(names ...string) (Schema, error) {
	columns := make([]ColumnSchema, 0, len(names))
	for _, name := range names {
		idx := s.ColumnIndex(name)
		if idx < 0 {
			return Schema{}, NewErrorf(CodeInvalidArgument, "unknown column %q in projection", name)
		}
		columns = append(columns, s.Columns[idx])
	}
	return Schema{Columns: columns}, nil
}
