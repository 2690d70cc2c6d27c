package tabletclient

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikwall/tabletstore-client/src/cluster"
	"github.com/zikwall/tabletstore-client/src/cx"
	"github.com/zikwall/tabletstore-client/src/rpc"
	"github.com/zikwall/tabletstore-client/src/wire"
)

const bigTableTablets = 100

func testSchema() cx.Schema {
	return cx.NewSchema([]cx.ColumnSchema{
		{Name: "key", Type: cx.TypeUint32},
		{Name: "v1", Type: cx.TypeUint64},
		{Name: "v2", Type: cx.TypeString},
	}, 1)
}

func newTestCluster(t *testing.T) (*cluster.MiniCluster, *Client) {
	t.Helper()
	// Make assignment fast so completion polling doesn't dominate runtime.
	old := cluster.HeartbeatInterval
	cluster.HeartbeatInterval = 20 * time.Millisecond
	t.Cleanup(func() {
		cluster.HeartbeatInterval = old
	})

	mini := cluster.NewMiniCluster()
	client, err := NewClient(DefaultOptions().
		SetMasterAddress(mini.MasterAddr()).
		SetMessenger(mini.Messenger()))
	require.NoError(t, err)
	return mini, client
}

// createBigTable pre-splits a table into bigTableTablets tablets, without
// waiting for assignment.
func createBigTable(t *testing.T, client *Client, tableName string) {
	t.Helper()
	keys := make([]string, 0, bigTableTablets-1)
	// 1 split = 2 tablets; push the keys in reverse to prove the master sorts.
	for i := bigTableTablets - 2; i >= 0; i-- {
		keys = append(keys, fmt.Sprintf("k_%05d", i))
	}
	require.NoError(t, client.CreateTable(tableName, testSchema(),
		NewCreateTableOptions().WithSplitKeys(keys).WaitAssignment(false)))
}

func TestClient_RequiresMasterAddress(t *testing.T) {
	_, err := NewClient(DefaultOptions())
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeInvalidArgument))
}

func TestClient_CreateBigTable(t *testing.T) {
	mini, client := newTestCluster(t)
	createBigTable(t, client, "test_table")

	var resp wire.GetTableLocationsResponse
	require.NoError(t, cluster.WaitForRunningTabletCount(
		mini.Messenger().MasterProxy(mini.MasterAddr()), "test_table", bigTableTablets, &resp))
	require.Len(t, resp.TabletLocations, bigTableTablets)

	// The tablets must tile the keyspace.
	assert.Equal(t, "", resp.TabletLocations[0].StartKey)
	assert.Equal(t, "k_00000", resp.TabletLocations[0].EndKey)
	for i := 1; i <= bigTableTablets-2; i++ {
		assert.Equal(t, fmt.Sprintf("k_%05d", i-1), resp.TabletLocations[i].StartKey)
		assert.Equal(t, fmt.Sprintf("k_%05d", i), resp.TabletLocations[i].EndKey)
	}
	last := resp.TabletLocations[bigTableTablets-1]
	assert.Equal(t, fmt.Sprintf("k_%05d", bigTableTablets-2), last.StartKey)
	assert.Equal(t, "", last.EndKey)
}

func TestClient_GetTableLocationsOptions(t *testing.T) {
	mini, client := newTestCluster(t)
	createBigTable(t, client, "test_table")

	master := mini.Messenger().MasterProxy(mini.MasterAddr())
	var resp wire.GetTableLocationsResponse
	require.NoError(t, cluster.WaitForRunningTabletCount(master, "test_table", bigTableTablets, &resp))

	locations := func(startKey string, max uint32) *wire.GetTableLocationsResponse {
		req := &wire.GetTableLocationsRequest{
			Table:                wire.TableIdent{TableName: "test_table"},
			StartKey:             startKey,
			MaxReturnedLocations: &max,
		}
		out := &wire.GetTableLocationsResponse{}
		require.NoError(t, master.GetTableLocations(req, out, rpc.NewController()))
		return out
	}

	t.Run("zero max is rejected", func(t *testing.T) {
		out := locations("", 0)
		require.NotNil(t, out.Error)
		assert.Contains(t, wire.StatusFromError(out.Error).Error(), "must be greater than 0")
	})

	t.Run("ask for one get the first", func(t *testing.T) {
		out := locations("", 1)
		require.Nil(t, out.Error)
		require.Len(t, out.TabletLocations, 1)
		assert.Equal(t, "", out.TabletLocations[0].StartKey)
		assert.Equal(t, "k_00000", out.TabletLocations[0].EndKey)
	})

	t.Run("ask for half get half", func(t *testing.T) {
		out := locations("", bigTableTablets/2)
		require.Nil(t, out.Error)
		assert.Len(t, out.TabletLocations, bigTableTablets/2)
	})

	t.Run("start key lands on its tablet", func(t *testing.T) {
		middle := fmt.Sprintf("k_%05d", bigTableTablets/2)
		out := locations(middle, 1)
		require.Nil(t, out.Error)
		require.Len(t, out.TabletLocations, 1)
		assert.Equal(t, middle, out.TabletLocations[0].StartKey)
	})
}

func TestClient_RestartMasterDuringCreation(t *testing.T) {
	mini, client := newTestCluster(t)
	createBigTable(t, client, "test_table")

	for i := 0; i < 3; i++ {
		time.Sleep(500 * time.Microsecond)
		mini.Master().Restart()
	}
	assert.EqualValues(t, 3, mini.Master().Restarts())

	var resp wire.GetTableLocationsResponse
	require.NoError(t, cluster.WaitForRunningTabletCount(
		mini.Messenger().MasterProxy(mini.MasterAddr()), "test_table", bigTableTablets, &resp))
	assert.Len(t, resp.TabletLocations, bigTableTablets)
}

func TestClient_CreateTableAlreadyExists(t *testing.T) {
	_, client := newTestCluster(t)
	require.NoError(t, client.CreateTable("dup", testSchema(), nil))

	// The master's status comes back verbatim; existence conflicts are not
	// retried.
	err := client.CreateTable("dup", testSchema(), nil)
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeAlreadyPresent))
}

func TestClient_GetTableSchemaStripsColumnIDs(t *testing.T) {
	_, client := newTestCluster(t)
	require.NoError(t, client.CreateTable("users", testSchema(), nil))

	schema, err := client.GetTableSchema("users")
	require.NoError(t, err)
	if diff := cmp.Diff(testSchema(), schema); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}

	_, err = client.GetTableSchema("nope")
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeNotFound))
}

func TestClient_AlterTable(t *testing.T) {
	_, client := newTestCluster(t)
	require.NoError(t, client.CreateTable("users", testSchema(), nil))

	t.Run("empty alter is rejected", func(t *testing.T) {
		err := client.AlterTable("users", NewAlterTableBuilder())
		require.Error(t, err)
		assert.True(t, cx.IsError(err, cx.CodeInvalidArgument))
	})

	t.Run("add drop rename and rename table", func(t *testing.T) {
		alter := NewAlterTableBuilder()
		require.Error(t, alter.AddColumn("scored", cx.TypeBool, nil))
		require.NoError(t, alter.AddColumn("score", cx.TypeInt64, int64(0)))
		require.NoError(t, alter.AddNullableColumn("email", cx.TypeString))
		require.NoError(t, alter.DropColumn("v1"))
		require.NoError(t, alter.RenameColumn("v2", "bio"))
		require.NoError(t, alter.RenameTable("accounts"))
		require.True(t, alter.HasChanges())

		// The completion probe must use the new name: polling the old name
		// would see NotFound until the deadline.
		require.NoError(t, client.AlterTable("users", alter))

		schema, err := client.GetTableSchema("accounts")
		require.NoError(t, err)
		assert.Equal(t, -1, schema.ColumnIndex("v1"))
		assert.GreaterOrEqual(t, schema.ColumnIndex("bio"), 0)
		assert.GreaterOrEqual(t, schema.ColumnIndex("score"), 0)
		assert.GreaterOrEqual(t, schema.ColumnIndex("email"), 0)

		_, err = client.GetTableSchema("users")
		require.Error(t, err)
		assert.True(t, cx.IsError(err, cx.CodeNotFound))
	})
}

func TestClient_DeleteTable(t *testing.T) {
	_, client := newTestCluster(t)
	require.NoError(t, client.CreateTable("gone", testSchema(), nil))
	require.NoError(t, client.DeleteTable("gone"))

	err := client.DeleteTable("gone")
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeNotFound))
}

func TestClient_OpenTable(t *testing.T) {
	_, client := newTestCluster(t)
	require.NoError(t, client.CreateTable("single", testSchema(), nil))

	table, err := client.OpenTable("single")
	require.NoError(t, err)
	assert.Equal(t, "single", table.Name())
	assert.NotEmpty(t, table.TabletID())
	if diff := cmp.Diff(testSchema(), table.Schema()); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_OpenTableRejectsMultiTablet(t *testing.T) {
	_, client := newTestCluster(t)
	require.NoError(t, client.CreateTable("wide", testSchema(),
		NewCreateTableOptions().WithSplitKeys([]string{"m"})))

	_, err := client.OpenTable("wide")
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeIllegalState))
}

func TestClient_GetTabletProxyUnknownTablet(t *testing.T) {
	_, client := newTestCluster(t)
	_, err := client.GetTabletProxy("no-such-tablet")
	require.Error(t, err)
	assert.True(t, cx.IsError(err, cx.CodeNotFound))
}
