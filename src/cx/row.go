package cx

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"
)

// Vector is an ordered slice of column values, one entry per schema column.
// It is the unit buffered by mutation buffers and carried in row blocks.
type Vector []interface{}

// Encode turns the Vector into an array of bytes.
// Encode is used for serialization and storage in remote buffers, such as the
// redis-backed mutation buffer.
func (v Vector) Encode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VectorDecoded a type that is a string, but contains a binary data format
type VectorDecoded string

// Decode reverses Vector.Encode.
func (d VectorDecoded) Decode() (Vector, error) {
	var v Vector
	err := gob.NewDecoder(bytes.NewReader([]byte(d))).Decode(&v)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Row is a partially-set row over a schema. Mutations carry a Row; the key
// columns must all be set before a session accepts the mutation.
type Row struct {
	schema Schema
	values []interface{}
	isSet  []bool
}

func NewRow(schema Schema) *Row {
	return &Row{
		schema: schema,
		values: make([]interface{}, len(schema.Columns)),
		isSet:  make([]bool, len(schema.Columns)),
	}
}

func (r *Row) Schema() Schema {
	return r.schema
}

func (r *Row) set(name string, want DataType, value interface{}) error {
	idx := r.schema.ColumnIndex(name)
	if idx < 0 {
		return NewErrorf(CodeInvalidArgument, "no column %q in schema", name)
	}
	if col := r.schema.Columns[idx]; col.Type != want {
		return NewErrorf(CodeInvalidArgument, "column %q is %s, not %s", name, col.Type, want)
	}
	r.values[idx] = value
	r.isSet[idx] = true
	return nil
}

func (r *Row) SetUint32(name string, value uint32) error {
	return r.set(name, TypeUint32, value)
}

func (r *Row) SetUint64(name string, value uint64) error {
	return r.set(name, TypeUint64, value)
}

func (r *Row) SetInt64(name string, value int64) error {
	return r.set(name, TypeInt64, value)
}

func (r *Row) SetString(name string, value string) error {
	return r.set(name, TypeString, value)
}

func (r *Row) SetBool(name string, value bool) error {
	return r.set(name, TypeBool, value)
}

// IsKeySet reports whether every key column has been assigned a value.
func (r *Row) IsKeySet() bool {
	for i := 0; i < r.schema.NumKeyColumns; i++ {
		if !r.isSet[i] {
			return false
		}
	}
	return true
}

// Vector snapshots the row values in schema order. Unset columns are nil.
func (r *Row) Vector() Vector {
	v := make(Vector, len(r.values))
	copy(v, r.values)
	return v
}

// EncodedKey renders the key columns into a string that sorts in key order.
// Numeric values are zero-padded so lexicographic order matches numeric order.
func (r *Row) EncodedKey() string {
	return EncodedKey(r.schema, r.values)
}

// EncodedKey is the vector-level form of Row.EncodedKey.
func EncodedKey(schema Schema, values []interface{}) string {
	parts := make([]string, 0, schema.NumKeyColumns)
	for i := 0; i < schema.NumKeyColumns && i < len(values); i++ {
		parts = append(parts, encodeKeyValue(values[i]))
	}
	return strings.Join(parts, "\x00")
}

// EncodeValue renders a single column value into a string that sorts in
// value order within its type. Numerics are zero-padded.
func EncodeValue(value interface{}) string {
	return encodeKeyValue(value)
}

func encodeKeyValue(value interface{}) string {
	switch v := value.(type) {
	case uint32:
		return fmt.Sprintf("%010d", v)
	case uint64:
		return fmt.Sprintf("%020d", v)
	case int64:
		// Flipping the sign bit maps int64 order onto uint64 order.
		return fmt.Sprintf("%020d", uint64(v)^(1<<63))
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}

// String renders the set columns, mostly for log and error messages.
func (r *Row) String() string {
	var b strings.Builder
	b.WriteByte('(')
	first := true
	for i, col := range r.schema.Columns {
		if !r.isSet[i] {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s=%v", col.Name, r.values[i])
	}
	b.WriteByte(')')
	return b.String()
}
