package plugin

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/squareup/datatable/alloc"
	"github.com/squareup/datatable/column"
	"github.com/squareup/datatable/conf"
	"github.com/squareup/datatable/datatable"
	"github.com/squareup/datatable/metrics"
	"github.com/squareup/datatable/perrors"
	"github.com/squareup/datatable/rowindex"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, cols ...func(pool *alloc.Pool) (*column.Column, error)) (*datatable.Engine, *datatable.DataTable) {
	t.Helper()
	engine, err := datatable.NewEngine(conf.Config{}, nil, nil, metrics.NewFakeFactory())
	require.NoError(t, err)
	built := make([]*column.Column, len(cols))
	for i, fn := range cols {
		built[i], err = fn(engine.Pool())
		require.NoError(t, err)
	}
	table, err := engine.NewTable(built...)
	require.NoError(t, err)
	return engine, table
}

func longCol(values ...int64) func(pool *alloc.Pool) (*column.Column, error) {
	return func(pool *alloc.Pool) (*column.Column, error) { return column.NewLong(pool, values) }
}

func strCol(values ...string) func(pool *alloc.Pool) (*column.Column, error) {
	return func(pool *alloc.Pool) (*column.Column, error) { return column.NewString(pool, values) }
}

func boolCol(values ...bool) func(pool *alloc.Pool) (*column.Column, error) {
	return func(pool *alloc.Pool) (*column.Column, error) { return column.NewBool(pool, values) }
}

func TestBuiltinNames(t *testing.T) {
	require.Equal(t, []string{"even_rows", "identity", "nonzero", "reverse"}, Names())
}

func TestBuiltins(t *testing.T) {
	_, table := newTable(t, strCol("a", "b", "c", "d", "e"), longCol(0, 3, 0, -1, 7))
	defer table.Release()

	type testCase struct {
		name     string
		expected []int64
	}
	cases := []testCase{
		{IdentityAlgorithm, []int64{0, 1, 2, 3, 4}},
		{ReverseAlgorithm, []int64{4, 3, 2, 1, 0}},
		{EvenRowsAlgorithm, []int64{0, 2, 4}},
		{NonZeroAlgorithm, []int64{1, 3, 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			positions, err := Call(tc.name, table)
			require.NoError(t, err)
			require.Equal(t, tc.expected, positions)
		})
	}
}

func TestNonZeroOnBoolColumn(t *testing.T) {
	_, table := newTable(t, boolCol(true, false, true))
	defer table.Release()
	positions, err := Call(NonZeroAlgorithm, table)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 2}, positions)
}

func TestNonZeroWithoutNumericColumn(t *testing.T) {
	_, table := newTable(t, strCol("x"))
	defer table.Release()
	_, err := Call(NonZeroAlgorithm, table)
	require.True(t, perrors.HasCode(err, perrors.TypeMismatch))
}

func TestResultFeedsApply(t *testing.T) {
	engine, table := newTable(t, longCol(10, 20, 30, 40))
	positions, err := Call(ReverseAlgorithm, table)
	require.NoError(t, err)
	view, err := engine.Apply(table, rowindex.FromArray(positions))
	require.NoError(t, err)
	require.Equal(t, int64(40), view.Column(0).Long(0))
	require.Equal(t, int64(10), view.Column(0).Long(3))
	require.Same(t, table, view.Source())
	view.Release()
	table.Release()
}

func TestUnknownAlgorithm(t *testing.T) {
	_, table := newTable(t, longCol(1))
	defer table.Release()
	_, err := Call("does_not_exist", table)
	require.True(t, perrors.HasCode(err, perrors.UnknownAlgorithm))
	require.Equal(t, "DT0006 - Unknown algorithm does_not_exist", err.Error())
}

func TestCustomRegistry(t *testing.T) {
	_, table := newTable(t, longCol(1, 2, 3))
	defer table.Release()

	r := NewRegistry()
	require.Empty(t, r.Names())
	require.NoError(t, r.Register("too_many", func(t *datatable.DataTable, out []int64) (int64, error) {
		return int64(len(out)) + 1, nil
	}))
	require.NoError(t, r.Register("negative", func(t *datatable.DataTable, out []int64) (int64, error) {
		return -1, nil
	}))
	require.NoError(t, r.Register("failing", func(t *datatable.DataTable, out []int64) (int64, error) {
		return 0, errors.New("kernel failed")
	}))
	require.NoError(t, r.Register("last", func(t *datatable.DataTable, out []int64) (int64, error) {
		out[0] = t.RowCount() - 1
		return 1, nil
	}))
	require.Equal(t, []string{"failing", "last", "negative", "too_many"}, r.Names())

	err := r.Register("last", identity)
	require.True(t, perrors.HasCode(err, perrors.InvalidArgument))
	err = r.Register("", identity)
	require.True(t, perrors.HasCode(err, perrors.InvalidArgument))
	err = r.Register("nil", nil)
	require.True(t, perrors.HasCode(err, perrors.InvalidArgument))

	_, err = r.Call("too_many", table)
	require.True(t, perrors.HasCode(err, perrors.InternalError))
	_, err = r.Call("negative", table)
	require.True(t, perrors.HasCode(err, perrors.InternalError))
	_, err = r.Call("failing", table)
	require.EqualError(t, err, "kernel failed")
	positions, err := r.Call("last", table)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, positions)

	// the default registry is untouched
	_, err = Call("last", table)
	require.True(t, perrors.HasCode(err, perrors.UnknownAlgorithm))
}

func TestCallOnDestroyedTable(t *testing.T) {
	_, table := newTable(t, longCol(1))
	table.Release()
	_, err := Call(IdentityAlgorithm, table)
	require.True(t, perrors.HasCode(err, perrors.InvalidArgument))
}
