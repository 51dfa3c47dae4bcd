package writers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/telcoetl/core"
)

// unreachableDB returns a handle whose connections always fail.
func unreachableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("postgres", "postgresql://postgres:@127.0.0.1:1/saas_analytics?sslmode=disable&connect_timeout=2")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewPostgresLoader_Validation(t *testing.T) {
	_, err := NewPostgresLoader(nil, WithTableName("t"))
	assert.Equal(t, core.KindConfig, core.KindOf(err))

	_, err = NewPostgresLoader(unreachableDB(t))
	assert.Equal(t, core.KindConfig, core.KindOf(err))
}

func TestPostgresLoader_CreateTableSQL(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t),
		WithTableName("stg_telco_customers"),
		WithColumns([]string{"customer_id", "tenure", "TotalCharges", "PaperlessBilling"}),
	)
	require.NoError(t, err)

	records := []core.Record{
		{"customer_id": "7590-VHVEG", "tenure": int64(1), "TotalCharges": nil, "PaperlessBilling": true},
		{"customer_id": "5575-GNVDE", "tenure": int64(34), "TotalCharges": 1889.5, "PaperlessBilling": false},
	}

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "stg_telco_customers" ("customer_id" TEXT, "tenure" BIGINT, "TotalCharges" DOUBLE PRECISION, "PaperlessBilling" BOOLEAN)`,
		loader.createTableSQL(records))
	assert.Equal(t,
		`COPY "stg_telco_customers" ("customer_id", "tenure", "TotalCharges", "PaperlessBilling") FROM STDIN`,
		loader.copyInSQL())
}

func TestPostgresLoader_SchemaQualifiedTable(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t), WithTableName("staging.customers"), WithColumns([]string{"id"}))
	require.NoError(t, err)

	assert.Equal(t, `"staging"."customers"`, quoteTable("staging.customers"))
	assert.Equal(t, `COPY "staging"."customers" ("id") FROM STDIN`, loader.copyInSQL())
}

func TestPostgresLoader_ColumnsFromFirstRecord(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t), WithTableName("t"))
	require.NoError(t, err)

	require.NoError(t, loader.Write(context.Background(), core.Record{"b": 1, "a": 2}))
	assert.Equal(t, []string{"a", "b"}, loader.columns)
}

func TestPostgresLoader_FlushWithoutRecordsIsNoop(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t), WithTableName("t"))
	require.NoError(t, err)

	assert.NoError(t, loader.Flush())
	assert.NoError(t, loader.Close())
	assert.Error(t, loader.Write(context.Background(), core.Record{"a": 1}))
}

func TestPostgresLoader_UnreachableDatabase(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t),
		WithTableName("stg_telco_customers"),
		WithTruncateTable(true),
		WithQueryTimeout(5*time.Second),
	)
	require.NoError(t, err)

	n, err := LoadDataset(context.Background(), loader, stagedDataset())
	require.Error(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, core.KindConnection, core.KindOf(err))
	assert.Equal(t, int64(0), loader.Stats().RecordsWritten)
}

func TestPostgresLoader_AbortSkipsTransaction(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t), WithTableName("stg_telco_customers"), WithTruncateTable(true))
	require.NoError(t, err)

	require.NoError(t, loader.Write(context.Background(), core.Record{"customer_id": "a"}))
	require.NoError(t, loader.Abort())

	// Nothing is left to load, so Close never reaches the unreachable server.
	assert.Empty(t, loader.recordBuf)
	assert.NoError(t, loader.Close())
	assert.Equal(t, int64(0), loader.Stats().TransactionCount)
}

func TestPostgresLoader_FlushContextHonoursCancellation(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t), WithTableName("t"))
	require.NoError(t, err)
	require.NoError(t, loader.Write(context.Background(), core.Record{"a": 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = loader.FlushContext(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), loader.Stats().RecordsWritten)
}

func TestLoadDataset_CancelledLoadCommitsNothing(t *testing.T) {
	loader, err := NewPostgresLoader(unreachableDB(t), WithTableName("stg_telco_customers"), WithTruncateTable(true))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = LoadDataset(ctx, loader, stagedDataset())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, loader.recordBuf)
	assert.Equal(t, int64(0), loader.Stats().TransactionCount)
}

func TestInferSQLTypeAndConvertValue(t *testing.T) {
	assert.Equal(t, "TEXT", inferSQLType(nil))
	assert.Equal(t, "BIGINT", inferSQLType(int32(1)))
	assert.Equal(t, "DOUBLE PRECISION", inferSQLType(float32(1)))
	assert.Equal(t, "BOOLEAN", inferSQLType(true))
	assert.Equal(t, "TIMESTAMP", inferSQLType(time.Now()))

	assert.Equal(t, int64(7), convertValue(7))
	assert.Equal(t, int64(7), convertValue(uint8(7)))
	assert.Equal(t, "[1 2]", convertValue([]int{1, 2}))
	assert.Nil(t, convertValue(nil))
}
