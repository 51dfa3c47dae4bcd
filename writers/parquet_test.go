package writers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/telcoetl/core"
)

// readParquet loads a whole parquet file as an Arrow table.
func readParquet(t *testing.T, filename string) arrow.Table {
	t.Helper()

	reader, err := file.OpenParquetFile(filename, false)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)

	table, err := arrowReader.ReadTable(context.Background())
	require.NoError(t, err)
	t.Cleanup(table.Release)
	return table
}

func stagedDataset() *core.Dataset {
	return core.MustDataset(
		[]string{"customer_id", "tenure", "TotalCharges", "PaperlessBilling"},
		[]interface{}{"7590-VHVEG", int64(1), nil, true},
		[]interface{}{"5575-GNVDE", int64(34), 1889.5, false},
		[]interface{}{"3668-QPYBK", int64(2), 108.15, nil},
	)
}

func TestParquetWriter_RoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "staged.parquet")
	ds := stagedDataset()

	schema, err := SchemaForDataset(ds)
	require.NoError(t, err)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(2).Type)

	writer, err := NewParquetWriter(filename, WithSchema(schema), WithBatchSize(2))
	require.NoError(t, err)

	n, err := LoadDataset(context.Background(), writer, ds)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	stats := writer.Stats()
	assert.Equal(t, int64(3), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.BatchesWritten)
	assert.Equal(t, int64(1), stats.NullValueCounts["TotalCharges"])

	table := readParquet(t, filename)
	assert.Equal(t, int64(3), table.NumRows())
	require.Equal(t, 4, int(table.NumCols()))
	for i, name := range ds.Columns() {
		assert.Equal(t, name, table.Schema().Field(i).Name)
	}
	assert.Equal(t, arrow.INT64, table.Schema().Field(1).Type.ID())
	assert.Equal(t, arrow.FLOAT64, table.Schema().Field(2).Type.ID())
	assert.Equal(t, arrow.BOOL, table.Schema().Field(3).Type.ID())

	totals := table.Column(2).Data().Chunk(0).(*array.Float64)
	assert.True(t, totals.IsNull(0))
	assert.Equal(t, 1889.5, totals.Value(1))
}

func TestParquetWriter_InfersSchemaFromFirstRecord(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "inferred.parquet")

	writer, err := NewParquetWriter(filename)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"b": 1.5, "a": "x"}))
	require.NoError(t, writer.Write(ctx, core.Record{"b": 2.5, "a": "y"}))
	require.NoError(t, writer.Close())

	table := readParquet(t, filename)
	assert.Equal(t, int64(2), table.NumRows())
	assert.Equal(t, "a", table.Schema().Field(0).Name)
	assert.Equal(t, "b", table.Schema().Field(1).Name)
}

func TestParquetWriter_EmptyDatasetKeepsSchema(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "empty.parquet")
	ds := core.MustDataset([]string{"customer_id", "TotalCharges"})

	schema, err := SchemaForDataset(ds)
	require.NoError(t, err)
	writer, err := NewParquetWriter(filename, WithSchema(schema))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	table := readParquet(t, filename)
	assert.Equal(t, int64(0), table.NumRows())
	assert.Equal(t, 2, int(table.NumCols()))
}

func TestParquetWriter_TypeMismatch(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "mismatch.parquet")

	writer, err := NewParquetWriter(filename, WithBatchSize(1))
	require.NoError(t, err)
	defer writer.Close()

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"v": int64(1)}))

	err = writer.Write(ctx, core.Record{"v": "not a number"})
	require.Error(t, err)
	assert.Equal(t, core.KindTypeCoercion, core.KindOf(err))

	err = writer.Write(ctx, core.Record{"v": int64(2)})
	assert.Contains(t, err.Error(), "error state")
}

func TestParquetWriter_UnsupportedType(t *testing.T) {
	writer, err := NewParquetWriter(filepath.Join(t.TempDir(), "bad.parquet"))
	require.NoError(t, err)
	defer writer.Close()

	err = writer.Write(context.Background(), core.Record{"v": struct{}{}})
	require.Error(t, err)
	assert.Equal(t, core.KindSchema, core.KindOf(err))
}

func TestParquetWriter_CloseTwice(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "twice.parquet")
	writer, err := NewParquetWriter(filename)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), core.Record{"a": int64(1)}))
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())

	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = writer.Write(context.Background(), core.Record{"a": int64(2)})
	assert.Error(t, err)
}
