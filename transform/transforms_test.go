package transform

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aaronlmathis/telcoetl/core"
)

func telcoDataset() *core.Dataset {
	return core.MustDataset(
		[]string{"customerID", "tenure", "TotalCharges"},
		[]interface{}{"7590-VHVEG", int64(1), "29.85"},
		[]interface{}{"5575-GNVDE", int64(34), "1889.5"},
		[]interface{}{"4472-LVYGI", int64(0), ""},
	)
}

func TestStageTelcoCustomers_DefaultPolicy(t *testing.T) {
	in := telcoDataset()

	out, err := StageTelcoCustomers(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_id", "tenure", "TotalCharges"}, out.Columns())
	total, ok := out.ColumnValues("TotalCharges")
	require.True(t, ok)
	assert.InDelta(t, 29.85, total[0], 1e-9)
	assert.InDelta(t, 1889.5, total[1], 1e-9)
	assert.Equal(t, 0.0, total[2])

	ids, _ := out.ColumnValues("customer_id")
	assert.Equal(t, []interface{}{"7590-VHVEG", "5575-GNVDE", "4472-LVYGI"}, ids)

	// Input is untouched.
	assert.True(t, in.HasColumn("customerID"))
	assert.Equal(t, "29.85", in.Value(0, 2))
	assert.Equal(t, "", in.Value(2, 2))
}

func TestStageTelcoCustomers_Policies(t *testing.T) {
	out, err := StageTelcoCustomers(context.Background(), telcoDataset(), WithBlankPolicy(BlankAsNull))
	require.NoError(t, err)
	assert.Nil(t, out.Value(2, 2))

	_, err = StageTelcoCustomers(context.Background(), telcoDataset(), WithBlankPolicy(BlankReject))
	require.Error(t, err)
	assert.Equal(t, core.KindTypeCoercion, core.KindOf(err))
}

func TestStageTelcoCustomers_WhitespaceAndNilAreBlank(t *testing.T) {
	ds := core.MustDataset(
		[]string{"customerID", "TotalCharges"},
		[]interface{}{"a", " "},
		[]interface{}{"b", nil},
		[]interface{}{"c", 12.5},
	)

	obs, logs := observer.New(zap.InfoLevel)
	out, err := StageTelcoCustomers(context.Background(), ds, WithLogger(zap.New(obs)))
	require.NoError(t, err)

	total, _ := out.ColumnValues("TotalCharges")
	assert.Equal(t, []interface{}{0.0, 0.0, 12.5}, total)

	entries := logs.FilterMessage("staging complete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["blank_total_charges"])
	assert.Equal(t, "zero", entries[0].ContextMap()["blank_policy"])
}

func TestStageTelcoCustomers_NonNumericFails(t *testing.T) {
	for _, policy := range []BlankPolicy{BlankAsZero, BlankAsNull, BlankReject} {
		ds := core.MustDataset(
			[]string{"customerID", "TotalCharges"},
			[]interface{}{"a", "29.85"},
			[]interface{}{"b", "abc"},
		)
		_, err := StageTelcoCustomers(context.Background(), ds, WithBlankPolicy(policy))
		require.Error(t, err, policy.String())
		assert.Equal(t, core.KindTypeCoercion, core.KindOf(err))
		assert.Contains(t, err.Error(), `"abc"`)
	}
}

func TestStageTelcoCustomers_NonFiniteFails(t *testing.T) {
	for _, value := range []interface{}{"NaN", "Inf", "-inf", "infinity", math.NaN(), math.Inf(1)} {
		ds := core.MustDataset(
			[]string{"customerID", "TotalCharges"},
			[]interface{}{"a", value},
		)
		_, err := StageTelcoCustomers(context.Background(), ds)
		require.Error(t, err, "%v", value)
		assert.Equal(t, core.KindTypeCoercion, core.KindOf(err), "%v", value)
	}
}

func TestStageTelcoCustomers_MissingColumns(t *testing.T) {
	ds := core.MustDataset([]string{"tenure"}, []interface{}{int64(1)})

	_, err := StageTelcoCustomers(context.Background(), ds)
	require.Error(t, err)
	assert.Equal(t, core.KindSchema, core.KindOf(err))
	assert.Contains(t, err.Error(), "customerID, TotalCharges")
}

func TestStageTelcoCustomers_NumericColumnFromExtract(t *testing.T) {
	// A clean file yields an already-typed float column.
	ds := core.MustDataset(
		[]string{"customerID", "TotalCharges"},
		[]interface{}{"a", 29.85},
		[]interface{}{"b", int64(100)},
	)

	out, err := StageTelcoCustomers(context.Background(), ds)
	require.NoError(t, err)
	total, _ := out.ColumnValues("TotalCharges")
	assert.Equal(t, []interface{}{29.85, 100.0}, total)
}

func TestRename(t *testing.T) {
	ds := core.MustDataset([]string{"a", "b"}, []interface{}{1, 2})

	out, err := Rename("a", "c").Transform(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, out.Columns())
	assert.Equal(t, []string{"a", "b"}, ds.Columns())

	_, err = Rename("missing", "x").Transform(context.Background(), ds)
	assert.Equal(t, core.KindSchema, core.KindOf(err))

	_, err = Rename("a", "b").Transform(context.Background(), ds)
	assert.Equal(t, core.KindSchema, core.KindOf(err))
}

func TestToFloat_MissingColumn(t *testing.T) {
	ds := core.MustDataset([]string{"a"}, []interface{}{"1"})

	_, err := ToFloat("b", BlankAsZero).Transform(context.Background(), ds)
	assert.Equal(t, core.KindSchema, core.KindOf(err))
}

func TestToFloat_RejectsBool(t *testing.T) {
	ds := core.MustDataset([]string{"a"}, []interface{}{true})

	_, err := ToFloat("a", BlankAsZero).Transform(context.Background(), ds)
	assert.Equal(t, core.KindTypeCoercion, core.KindOf(err))
}

func TestTrimSpaceAndChain(t *testing.T) {
	ds := core.MustDataset([]string{"id", "v"}, []interface{}{"  x ", " 2.5"})

	out, err := Chain(TrimSpace("id", "ignored"), ToFloat("v", BlankReject)).Transform(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, "x", out.Value(0, 0))
	assert.Equal(t, 2.5, out.Value(0, 1))
	assert.Equal(t, "  x ", ds.Value(0, 0))

	empty, err := Chain().Transform(context.Background(), ds)
	require.NoError(t, err)
	assert.NotSame(t, ds, empty)
	assert.Equal(t, ds.Columns(), empty.Columns())
}

func TestParseBlankPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want BlankPolicy
	}{
		{"", BlankAsZero},
		{"zero", BlankAsZero},
		{"NULL", BlankAsNull},
		{" reject ", BlankReject},
	}
	for _, tt := range tests {
		got, err := ParseBlankPolicy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseBlankPolicy("drop")
	assert.Equal(t, core.KindConfig, core.KindOf(err))
}
