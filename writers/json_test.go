package writers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/telcoetl/core"
)

func TestJSONWriter_WritesLines(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"customer_id": "7590-VHVEG", "TotalCharges": 29.85}))
	require.NoError(t, writer.Write(ctx, core.Record{"customer_id": "4472-LVYGI", "TotalCharges": nil}))

	// Buffered until flush.
	assert.Empty(t, mock.String())

	require.NoError(t, writer.Close())
	assert.Equal(t,
		"{\"TotalCharges\":29.85,\"customer_id\":\"7590-VHVEG\"}\n{\"TotalCharges\":null,\"customer_id\":\"4472-LVYGI\"}\n",
		mock.String())
	assert.Equal(t, int64(2), writer.Written())
	assert.True(t, mock.IsClosed())
}

func TestJSONWriter_MarshalError(t *testing.T) {
	writer := NewJSONWriter(newMockWriteCloser())

	err := writer.Write(context.Background(), core.Record{"bad": make(chan int)})
	require.Error(t, err)
	assert.Equal(t, core.KindUnexpected, core.KindOf(err))
}

func TestJSONWriter_CloseAfterFailedFlushClosesWriter(t *testing.T) {
	mock := newMockWriteCloser()
	mock.failWrite = true
	writer := NewJSONWriter(mock)

	require.NoError(t, writer.Write(context.Background(), core.Record{"customer_id": "a"}))

	err := writer.Close()
	require.Error(t, err)
	assert.Equal(t, core.KindUnexpected, core.KindOf(err))
	assert.True(t, mock.IsClosed())

	// A second Close is a no-op.
	assert.NoError(t, writer.Close())
}

func TestJSONWriter_AbortDiscardsOutput(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock)

	require.NoError(t, writer.Write(context.Background(), core.Record{"customer_id": "a"}))
	require.NoError(t, writer.Abort())

	assert.Empty(t, mock.String())
	assert.True(t, mock.IsClosed())
	assert.Error(t, writer.Write(context.Background(), core.Record{"customer_id": "b"}))
}
