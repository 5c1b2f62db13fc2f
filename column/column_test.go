package column

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/squareup/datatable/alloc"
	"github.com/squareup/datatable/perrors"
	"github.com/squareup/datatable/rowindex"
	"github.com/stretchr/testify/require"
)

func newCheckedPool(t *testing.T, limit int64) *alloc.Pool {
	t.Helper()
	checked := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { checked.AssertSize(t, 0) })
	return alloc.NewPool(checked, limit)
}

func TestCanonicalTypes(t *testing.T) {
	names := map[Type]string{
		TypeAuto:   "auto",
		TypeDouble: "real",
		TypeLong:   "int",
		TypeBool:   "bool",
		TypeString: "str",
		TypeObject: "obj",
	}
	require.Equal(t, len(names), len(ColumnTypesByType))
	for typ, name := range names {
		require.Same(t, ColumnTypesByType[typ], typ.ColumnType())
		require.Equal(t, name, typ.ColumnType().Name)
		require.Equal(t, name, typ.String())
		parsed, ok := ParseType(name)
		require.True(t, ok)
		require.Equal(t, typ, parsed)
	}
	_, ok := ParseType("decimal")
	require.False(t, ok)
	require.Panics(t, func() { _ = Type(99).ColumnType() })
}

func TestLongSliceView(t *testing.T) {
	pool := newCheckedPool(t, 0)
	col, err := NewLong(pool, []int64{0, 10, 20, 30, 40, 50})
	require.NoError(t, err)
	require.Same(t, LongColumnType, col.Type())

	view := col.SliceView(1, 3, 2)
	require.True(t, view.SharesStorage(col))
	require.Equal(t, int64(3), view.Len())
	require.Equal(t, []interface{}{int64(10), int64(30), int64(50)}, values(view))

	// a view of a view composes offset and stride against the same buffer
	rev := view.SliceView(2, 3, -1)
	require.True(t, rev.SharesStorage(col))
	require.Equal(t, []interface{}{int64(50), int64(30), int64(10)}, values(rev))

	// the root can go first, the views keep the buffer alive
	col.Release()
	require.Equal(t, int64(30), view.Long(1))
	view.Release()
	require.Equal(t, int64(50), rev.Long(0))
	rev.Release()
	require.Equal(t, int64(0), pool.InUse())
}

func TestZeroStepRepeatsRow(t *testing.T) {
	pool := newCheckedPool(t, 0)
	col, err := NewDouble(pool, []float64{1.5, 2.5, 3.5})
	require.NoError(t, err)
	view := col.SliceView(1, 4, 0)
	require.Equal(t, []interface{}{2.5, 2.5, 2.5, 2.5}, values(view))
	view.Release()
	col.Release()
}

func TestGather(t *testing.T) {
	pool := newCheckedPool(t, 0)
	cols := buildAllTypes(t, pool)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	positions := []int64{3, 0, 0, 2}
	for _, col := range cols {
		gathered, err := col.Gather(pool, positions)
		require.NoError(t, err)
		require.Same(t, col.Type(), gathered.Type())
		require.Equal(t, int64(len(positions)), gathered.Len())
		if col.Type() != AutoColumnType {
			require.False(t, gathered.SharesStorage(col))
		}
		for i, pos := range positions {
			require.Equal(t, col.Value(pos), gathered.Value(int64(i)), "type %s index %d", col.Type(), i)
		}
		gathered.Release()
	}
}

func TestGatherPositionsFromRowIndex(t *testing.T) {
	pool := newCheckedPool(t, 0)
	cols := buildAllTypes(t, pool)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	array := rowindex.FromArray([]int64{2, 2, 1})
	slice, err := rowindex.FromSlice(3, 2, -3)
	require.NoError(t, err)
	for _, selector := range []*rowindex.RowIndex{array, slice} {
		for _, col := range cols {
			gathered, err := col.GatherPositions(pool, selector)
			require.NoError(t, err)
			require.Equal(t, selector.Count(), gathered.Len())
			for i := int64(0); i < selector.Count(); i++ {
				require.Equal(t, col.Value(selector.At(i)), gathered.Value(i), "type %s index %d", col.Type(), i)
			}
			gathered.Release()
		}
	}
}

func TestGatherFromView(t *testing.T) {
	pool := newCheckedPool(t, 0)
	col, err := NewString(pool, []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	view := col.SliceView(4, 3, -2)
	require.Equal(t, []interface{}{"eeeee", "ccc", "a"}, values(view))

	gathered, err := view.Gather(pool, []int64{1, 1, 0})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"ccc", "ccc", "eeeee"}, values(gathered))

	for _, c := range []*Column{col, view, gathered} {
		c.Release()
	}
	require.Equal(t, int64(0), pool.InUse())
}

func TestObjectColumnReferenceCounts(t *testing.T) {
	pool := newCheckedPool(t, 0)
	handles := makeHandles(4)
	hs := asHandles(handles)
	hs[2] = nil
	col, err := NewObject(pool, hs)
	require.NoError(t, err)
	requireCounts(t, handles, 2, 2, 1, 2)

	view := col.SliceView(0, 2, 1)
	// views share the store, element counts are unchanged
	requireCounts(t, handles, 2, 2, 1, 2)

	gathered, err := col.Gather(pool, []int64{0, 0, 2, 3})
	require.NoError(t, err)
	requireCounts(t, handles, 4, 2, 1, 3)
	require.Nil(t, gathered.Object(2))

	gathered.Release()
	requireCounts(t, handles, 2, 2, 1, 2)
	col.Release()
	requireCounts(t, handles, 2, 2, 1, 2)
	view.Release()
	requireCounts(t, handles, 1, 1, 1, 1)
	require.Equal(t, int64(0), pool.InUse())
}

func TestGatherAllocationFailure(t *testing.T) {
	pool := newCheckedPool(t, 200)
	col, err := NewString(pool, []string{"abcdefgh", "ijklmnop"})
	require.NoError(t, err)
	used := pool.InUse()

	// offsets fit but the string bytes do not
	_, err = col.Gather(pool, []int64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1})
	require.True(t, perrors.HasCode(err, perrors.AllocationFailure))
	require.Equal(t, used, pool.InUse())

	handles := makeHandles(20)
	_, err = NewObject(pool, asHandles(handles))
	require.True(t, perrors.HasCode(err, perrors.AllocationFailure))
	for _, h := range handles {
		require.Equal(t, int64(1), h.RefCount())
	}
	col.Release()
}

func TestReleaseTwicePanics(t *testing.T) {
	pool := newCheckedPool(t, 0)
	col, err := NewBool(pool, []bool{true, false})
	require.NoError(t, err)
	col.Release()
	require.True(t, col.Released())
	require.Panics(t, col.Release)
	require.Panics(t, func() { col.Bool(0) })
}

func TestWrongTypeAndBoundsPanics(t *testing.T) {
	pool := newCheckedPool(t, 0)
	col, err := NewLong(pool, []int64{1})
	require.NoError(t, err)
	defer col.Release()
	require.Panics(t, func() { col.Double(0) })
	require.Panics(t, func() { col.Long(1) })
	require.Panics(t, func() { col.Long(-1) })
}

func TestAutoColumn(t *testing.T) {
	col := NewAuto(3)
	require.Same(t, AutoColumnType, col.Type())
	require.Nil(t, col.Value(2))
	view := col.SliceView(0, 2, 1)
	require.Equal(t, int64(2), view.Len())
	view.Release()
	col.Release()
}

func buildAllTypes(t *testing.T, pool *alloc.Pool) []*Column {
	t.Helper()
	longs, err := NewLong(pool, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	doubles, err := NewDouble(pool, []float64{0.5, 1.5, 2.5, 3.5})
	require.NoError(t, err)
	bools, err := NewBool(pool, []bool{true, false, false, true})
	require.NoError(t, err)
	strs, err := NewString(pool, []string{"", "aardvark", "b", "cc"})
	require.NoError(t, err)
	handles := makeHandles(4)
	objs, err := NewObject(pool, asHandles(handles))
	require.NoError(t, err)
	for _, h := range handles {
		h.Release()
	}
	return []*Column{longs, doubles, bools, strs, objs, NewAuto(4)}
}

func makeHandles(n int) []*CountedHandle {
	handles := make([]*CountedHandle, n)
	for i := range handles {
		handles[i] = NewCountedHandle(fmt.Sprintf("obj-%d", i))
	}
	return handles
}

func asHandles(handles []*CountedHandle) []Handle {
	res := make([]Handle, len(handles))
	for i, h := range handles {
		res[i] = h
	}
	return res
}

func requireCounts(t *testing.T, handles []*CountedHandle, expected ...int64) {
	t.Helper()
	for i, h := range handles {
		require.Equal(t, expected[i], h.RefCount(), "handle %d", i)
	}
}

func values(col *Column) []interface{} {
	res := make([]interface{}, col.Len())
	for i := range res {
		res[i] = col.Value(int64(i))
	}
	return res
}
