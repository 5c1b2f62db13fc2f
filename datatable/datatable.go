// Package datatable implements tables made of typed columns, the engine which derives new tables from row
// selectors, and the reference counted lifecycle which ties views to the table they were derived from.
//
// A root table owns its columns. A view is produced by Engine.Apply. A view keeps a reference on its source, and
// its source is always a root: applying a selector to a view yields a table whose source is the view's own source.
package datatable

import (
	"fmt"

	"github.com/squareup/datatable/column"
	"github.com/squareup/datatable/perrors"
	"github.com/squareup/datatable/rowindex"
	"go.uber.org/atomic"
)

type DataTable struct {
	nrows       int64
	columns     []*column.Column
	rowIndex    *rowindex.RowIndex
	source      *DataTable
	refCount    atomic.Int64
	destroyed   atomic.Bool
	destroyHook func(t *DataTable)
}

// New creates a root table from the given columns, which must all have the same length. On success the table takes
// ownership of the columns and the caller holds the single reference to the table. On failure the columns still
// belong to the caller.
func New(columns ...*column.Column) (*DataTable, error) {
	var nrows int64
	seen := make(map[*column.Column]int, len(columns))
	for i, col := range columns {
		if col == nil {
			return nil, perrors.NewInvalidArgumentError(fmt.Sprintf("column %d is nil", i))
		}
		if col.Released() {
			return nil, perrors.NewInvalidArgumentError(fmt.Sprintf("column %d has been released", i))
		}
		// each column is released once on destroy
		if first, ok := seen[col]; ok {
			return nil, perrors.NewInvalidArgumentError(fmt.Sprintf("column %d is the same as column %d", i, first))
		}
		seen[col] = i
		if i == 0 {
			nrows = col.Len()
		} else if col.Len() != nrows {
			return nil, perrors.NewInvalidArgumentError(
				fmt.Sprintf("column %d has %d rows, expected %d", i, col.Len(), nrows))
		}
	}
	cols := make([]*column.Column, len(columns))
	copy(cols, columns)
	t := &DataTable{nrows: nrows, columns: cols}
	t.refCount.Store(1)
	return t, nil
}

func (t *DataTable) RowCount() int64 {
	return t.nrows
}

func (t *DataTable) ColCount() int64 {
	return int64(len(t.columns))
}

// ColumnTypes returns the canonical type of each column, in column order.
func (t *DataTable) ColumnTypes() []*column.ColumnType {
	t.checkLive()
	types := make([]*column.ColumnType, len(t.columns))
	for i, col := range t.columns {
		types[i] = col.Type()
	}
	return types
}

// RowIndexKind returns the kind of the attached row index, or KindNone for a table with no row index.
func (t *DataTable) RowIndexKind() rowindex.Kind {
	if t.rowIndex == nil {
		return rowindex.KindNone
	}
	return t.rowIndex.Kind()
}

func (t *DataTable) RowIndex() *rowindex.RowIndex {
	return t.rowIndex
}

// Source returns the root this table is a view of, or nil for a root table.
func (t *DataTable) Source() *DataTable {
	return t.source
}

func (t *DataTable) IsView() bool {
	return t.source != nil
}

func (t *DataTable) Column(i int) *column.Column {
	t.checkLive()
	return t.columns[i]
}

func (t *DataTable) Destroyed() bool {
	return t.destroyed.Load()
}

// RefCount returns the number of references currently held on the table, the caller's and those of its views.
func (t *DataTable) RefCount() int64 {
	return t.refCount.Load()
}

// Retain adds a reference to the table.
func (t *DataTable) Retain() {
	t.checkLive()
	t.refCount.Inc()
}

// Release drops a reference to the table. Dropping the last one destroys it: the columns give up their storage, and
// the reference on the source is released in turn.
func (t *DataTable) Release() {
	n := t.refCount.Dec()
	if n < 0 {
		panic("data table released too many times")
	}
	if n == 0 {
		t.destroy()
	}
}

// destroy releases everything the table holds. Column slots which were never filled are skipped, so a table which
// failed part way through construction can be destroyed too.
func (t *DataTable) destroy() {
	if t.nrows < 0 {
		panic(fmt.Sprintf("destroying data table with negative row count %d", t.nrows))
	}
	if !t.destroyed.CompareAndSwap(false, true) {
		panic("data table destroyed twice")
	}
	for i, col := range t.columns {
		if col != nil {
			col.Release()
			t.columns[i] = nil
		}
	}
	t.rowIndex = nil
	src := t.source
	t.source = nil
	if t.destroyHook != nil {
		t.destroyHook(t)
	}
	if src != nil {
		src.Release()
	}
}

func (t *DataTable) builtColumns() int {
	n := 0
	for _, col := range t.columns {
		if col != nil {
			n++
		}
	}
	return n
}

func (t *DataTable) checkLive() {
	if t.destroyed.Load() {
		panic("data table used after destroy")
	}
}

func (t *DataTable) String() string {
	return fmt.Sprintf("DataTable[nrows=%d, ncols=%d, rowindex=%s, view=%t]",
		t.nrows, len(t.columns), t.RowIndexKind(), t.IsView())
}
