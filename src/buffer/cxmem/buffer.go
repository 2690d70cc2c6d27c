// Package cxmem is the default in-process mutation buffer.
package cxmem

import (
	"github.com/zikwall/tabletstore-client/src/cx"
)

type memory struct {
	buffer []cx.Vector
	size   int
}

// NewBuffer creates an in-memory buffer sized for the expected batch.
func NewBuffer(size int) cx.Buffer {
	return &memory{
		buffer: make([]cx.Vector, 0, size+1),
		size:   size + 1,
	}
}

func (i *memory) Write(row cx.Vector) {
	i.buffer = append(i.buffer, row)
}

func (i *memory) Read() []cx.Vector {
	snapshot := make([]cx.Vector, len(i.buffer))
	copy(snapshot, i.buffer)
	return snapshot
}

func (i *memory) Len() int {
	return len(i.buffer)
}

func (i *memory) Flush() {
	i.buffer = i.buffer[:0]
}
