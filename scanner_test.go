package tabletclient

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikwall/tabletstore-client/src/cluster"
	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/wire"
)

// scanFixture loads rowCount rows into a fresh table in one batch.
func scanFixture(t *testing.T, rowCount int) (*cluster.MiniCluster, *Client, *Table) {
	t.Helper()
	mini, client, table := openTestTable(t, "scans")
	session := client.NewSession()
	defer session.Close()
	require.NoError(t, session.SetFlushMode(ManualFlush))
	for i := 0; i < rowCount; i++ {
		insert := table.NewInsert()
		require.NoError(t, insert.Row().SetUint32("key", uint32(i)))
		require.NoError(t, insert.Row().SetUint64("v1", uint64(i)))
		require.NoError(t, insert.Row().SetString("v2", fmt.Sprintf("row_%03d", i)))
		require.NoError(t, session.Apply(insert))
	}
	require.NoError(t, session.Flush())
	return mini, client, table
}

func drain(t *testing.T, scanner *Scanner) []cx.Vector {
	t.Helper()
	var out []cx.Vector
	for scanner.HasMoreRows() {
		var rows []cx.Vector
		require.NoError(t, scanner.NextBatch(&rows))
		out = append(out, rows...)
	}
	return out
}

func TestScanner_StreamsAllRowsInPages(t *testing.T) {
	mini, _, table := scanFixture(t, 30)

	scanner := NewScanner(table)
	// 64 bytes per row in the fake server: ten rows per page.
	scanner.SetBatchSizeBytes(640)
	require.NoError(t, scanner.Open())
	assert.True(t, scanner.HasMoreRows())
	assert.Equal(t, 1, mini.TabletServer().OpenScannerCount())

	rows := drain(t, scanner)
	require.Len(t, rows, 30)
	// Rows come back in key order.
	for i, row := range rows {
		assert.Equal(t, uint32(i), row[0].(uint32))
	}

	scanner.Close()
	waitFor(t, time.Second, func() bool { return mini.TabletServer().OpenScannerCount() == 0 })
}

func TestScanner_EmptyScanNeedsNoServerClose(t *testing.T) {
	mini, _, table := scanFixture(t, 0)

	scanner := NewScanner(table)
	require.NoError(t, scanner.Open())

	// No rows were matched and the server allocated no cursor, so Close must
	// not issue an RPC.
	assert.False(t, scanner.HasMoreRows())
	scanner.Close()
	assert.EqualValues(t, 0, mini.TabletServer().CloseCalls())
	assert.Equal(t, 0, mini.TabletServer().OpenScannerCount())
}

func TestScanner_SinglePageScanClosesLocally(t *testing.T) {
	mini, _, table := scanFixture(t, 5)

	scanner := NewScanner(table)
	require.NoError(t, scanner.Open())

	rows := drain(t, scanner)
	assert.Len(t, rows, 5)

	// Everything fit into the open response; no server cursor exists.
	assert.Equal(t, 0, mini.TabletServer().OpenScannerCount())
	scanner.Close()
	assert.EqualValues(t, 0, mini.TabletServer().CloseCalls())
}

func TestScanner_Projection(t *testing.T) {
	_, _, table := scanFixture(t, 4)

	projection, err := table.Schema().Projection("v2")
	require.NoError(t, err)

	scanner := NewScanner(table)
	scanner.SetProjection(projection)
	require.NoError(t, scanner.Open())

	rows := drain(t, scanner)
	require.Len(t, rows, 4)
	for i, row := range rows {
		require.Len(t, row, 1)
		assert.Equal(t, fmt.Sprintf("row_%03d", i), row[0].(string))
	}
}

func TestScanner_RangePredicate(t *testing.T) {
	_, _, table := scanFixture(t, 30)

	scanner := NewScanner(table)
	scanner.AddConjunctPredicate(wire.ColumnRangePredicate{
		ColumnName: "key",
		LowerBound: uint32(5),
		UpperBound: uint32(14),
	})
	require.NoError(t, scanner.Open())

	rows := drain(t, scanner)
	require.Len(t, rows, 10)
	assert.Equal(t, uint32(5), rows[0][0].(uint32))
	assert.Equal(t, uint32(14), rows[9][0].(uint32))
}

func TestScanner_DiscardMidScanReleasesCursor(t *testing.T) {
	mini, _, table := scanFixture(t, 30)

	scanner := NewScanner(table)
	scanner.SetBatchSizeBytes(640)
	require.NoError(t, scanner.Open())
	require.Equal(t, 1, mini.TabletServer().OpenScannerCount())

	// Walking away mid-scan: the close RPC runs against state owned by the
	// detached closer, so the scanner itself can be dropped right away.
	scanner.Close()
	scanner = nil
	waitFor(t, time.Second, func() bool { return mini.TabletServer().OpenScannerCount() == 0 })
	assert.EqualValues(t, 1, mini.TabletServer().CloseCalls())
}

func TestScanner_CloseIsIdempotent(t *testing.T) {
	mini, _, table := scanFixture(t, 30)

	scanner := NewScanner(table)
	scanner.SetBatchSizeBytes(640)
	require.NoError(t, scanner.Open())
	scanner.Close()
	scanner.Close()
	waitFor(t, time.Second, func() bool { return mini.TabletServer().OpenScannerCount() == 0 })
	assert.EqualValues(t, 1, mini.TabletServer().CloseCalls())
}

func TestScanner_ConfigurationAfterOpenPanics(t *testing.T) {
	_, _, table := scanFixture(t, 1)

	scanner := NewScanner(table)
	require.NoError(t, scanner.Open())
	defer scanner.Close()

	require.Panics(t, func() { scanner.SetProjection(table.Schema()) })
	require.Panics(t, func() { scanner.SetBatchSizeBytes(64) })
	require.Panics(t, func() {
		scanner.AddConjunctPredicate(wire.ColumnRangePredicate{ColumnName: "key"})
	})
	require.Panics(t, func() { scanner.Open() })
}

func TestScanner_NotOpenPanics(t *testing.T) {
	_, _, table := scanFixture(t, 1)

	scanner := NewScanner(table)
	require.Panics(t, func() { scanner.HasMoreRows() })
	require.Panics(t, func() {
		var rows []cx.Vector
		_ = scanner.NextBatch(&rows)
	})
}
