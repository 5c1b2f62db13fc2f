package datatable

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/datatable/alloc"
	"github.com/squareup/datatable/column"
	"github.com/squareup/datatable/conf"
	"github.com/squareup/datatable/failinject"
	"github.com/squareup/datatable/metrics"
	"github.com/squareup/datatable/perrors"
	"github.com/squareup/datatable/rowindex"
)

const (
	applyTotalMetric       = "datatable_apply_total"
	applyFailuresMetric    = "datatable_apply_failures_total"
	rollbackColumnsMetric  = "datatable_rollback_columns_total"
	tablesDestroyedMetric  = "datatable_tables_destroyed_total"
	allocatedBytesMetric   = "datatable_allocated_bytes"
	unknownSourceDataframe = "unknown source dataframe"
)

// Materializer is the boundary to the column kernels. It builds the output columns for a selector and reports which
// table the built columns are expressed against.
type Materializer interface {
	// Materialize builds output column col of table restricted by selector. The selector has already been validated
	// against the table's row count.
	Materialize(table *DataTable, selector *rowindex.RowIndex, col int) (*column.Column, error)

	// NaturalSource returns the table that the materialized columns of table refer to.
	NaturalSource(table *DataTable) *DataTable
}

type Engine struct {
	pool          *alloc.Pool
	materializer  Materializer
	allocFp       failinject.Failpoint
	assembleFp    failinject.Failpoint
	applyTotal    metrics.Counter
	applyFailures metrics.Counter
	rollbackCols  metrics.Counter
	destroyed     metrics.Counter
	allocated     metrics.Gauge
}

// NewEngine creates an engine allocating column storage from mem, within the memory budget of cfg. The injector
// must have been started. Metrics are created from metricsFactory, which must also have been started.
func NewEngine(cfg conf.Config, mem memory.Allocator, injector failinject.Injector, metricsFactory metrics.Factory) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if injector == nil {
		injector = failinject.NewDummyInjector()
	}
	pool := alloc.NewPool(mem, cfg.MaxMemoryBytes)
	e := &Engine{
		pool:         pool,
		materializer: &defaultMaterializer{pool: pool},
		allocFp:      injector.GetFailpoint(failinject.AllocColumn),
		assembleFp:   injector.GetFailpoint(failinject.AssembleTable),
	}
	var err error
	if e.applyTotal, err = metricsFactory.CreateCounter(applyTotalMetric, "Number of row selectors applied"); err != nil {
		return nil, errors.WithStack(err)
	}
	if e.applyFailures, err = metricsFactory.CreateCounter(applyFailuresMetric, "Number of failed applications of a row selector"); err != nil {
		return nil, errors.WithStack(err)
	}
	if e.rollbackCols, err = metricsFactory.CreateCounter(rollbackColumnsMetric, "Number of columns released while rolling back a failed apply"); err != nil {
		return nil, errors.WithStack(err)
	}
	if e.destroyed, err = metricsFactory.CreateCounter(tablesDestroyedMetric, "Number of data tables destroyed"); err != nil {
		return nil, errors.WithStack(err)
	}
	if e.allocated, err = metricsFactory.CreateGauge(allocatedBytesMetric, "Bytes currently held by column storage"); err != nil {
		return nil, errors.WithStack(err)
	}
	return e, nil
}

func (e *Engine) Pool() *alloc.Pool {
	return e.pool
}

// SetMaterializer replaces the materializer used by Apply.
func (e *Engine) SetMaterializer(m Materializer) {
	e.materializer = m
}

// NewTable creates a root table, see New, whose destruction is tracked by this engine.
func (e *Engine) NewTable(columns ...*column.Column) (*DataTable, error) {
	t, err := New(columns...)
	if err != nil {
		return nil, err
	}
	t.destroyHook = e.tableDestroyed
	e.updateAllocated()
	return t, nil
}

// Destroy drops the caller's reference to t. t is destroyed if no view still refers to it.
func (e *Engine) Destroy(t *DataTable) {
	t.Release()
}

// Apply produces a new table holding the rows of table picked by selector, in selector order.
//
// The selector is consumed: on success it belongs to the returned table and cannot be applied again. The result
// holds a reference on its source, which is table when table is a root and table's own source when table is a view.
// On failure nothing built for the result survives, no references are left behind, and the selector stays with the
// caller.
func (e *Engine) Apply(table *DataTable, selector *rowindex.RowIndex) (*DataTable, error) {
	e.applyTotal.Inc()
	res, err := e.apply(table, selector)
	if err != nil {
		e.applyFailures.Inc()
	}
	e.updateAllocated()
	return res, err
}

func (e *Engine) apply(table *DataTable, selector *rowindex.RowIndex) (*DataTable, error) {
	if selector == nil {
		return nil, perrors.NewInvalidArgumentError("row selector must not be nil, supply a row index spanning all rows instead")
	}
	if table == nil {
		return nil, perrors.NewInvalidArgumentError("data table must not be nil")
	}
	if table.Destroyed() {
		return nil, perrors.NewInvalidArgumentError("data table has been destroyed")
	}
	if err := selector.Validate(table.nrows); err != nil {
		return nil, err
	}
	if err := selector.Claim(); err != nil {
		return nil, err
	}

	result := &DataTable{
		nrows:       selector.Count(),
		columns:     make([]*column.Column, len(table.columns)),
		rowIndex:    selector,
		destroyHook: e.tableDestroyed,
	}
	result.refCount.Store(1)

	for i := range table.columns {
		if err := e.allocFp.CheckFail(); err != nil {
			return nil, e.rollback(result, selector, err)
		}
		col, err := e.materializer.Materialize(table, selector, i)
		if err != nil {
			return nil, e.rollback(result, selector, errors.WithMessagef(err, "materializing column %d", i))
		}
		result.columns[i] = col
	}
	if err := e.assembleFp.CheckFail(); err != nil {
		return nil, e.rollback(result, selector, err)
	}

	natural := e.materializer.NaturalSource(table)
	// a view is never its own source, that would let lineage grow past one hop
	switch {
	case natural == table && table.source == nil:
		result.source = table
	case natural == table.source && table.source != nil:
		result.source = table.source
	default:
		return nil, e.rollback(result, selector, perrors.NewLineageError(unknownSourceDataframe))
	}
	result.source.Retain()

	log.Debugf("applied %s to %s, flattened=%t", selector, table, result.source != table)
	return result, nil
}

// rollback destroys a partially built result through the normal destroy path. The selector is handed back to the
// caller rather than going down with the result.
func (e *Engine) rollback(result *DataTable, selector *rowindex.RowIndex, cause error) error {
	built := result.builtColumns()
	result.rowIndex = nil
	selector.Unclaim()
	// not a real table, it was never handed out
	result.destroyHook = nil
	result.Release()
	e.rollbackCols.Add(float64(built))
	log.Warnf("apply of %s failed, released %d built columns: %v", selector, built, cause)
	return cause
}

func (e *Engine) tableDestroyed(t *DataTable) {
	e.destroyed.Inc()
	e.updateAllocated()
	log.Tracef("destroyed %s", t)
}

func (e *Engine) updateAllocated() {
	e.allocated.Set(float64(e.pool.InUse()))
}

type defaultMaterializer struct {
	pool *alloc.Pool
}

// Materialize restricts the column to a slice with a view over the same storage, and gathers array selections into
// new storage.
func (m *defaultMaterializer) Materialize(table *DataTable, selector *rowindex.RowIndex, col int) (*column.Column, error) {
	src := table.columns[col]
	switch selector.Kind() {
	case rowindex.KindSlice:
		start, count, step := selector.Slice()
		return src.SliceView(start, count, step), nil
	case rowindex.KindArray:
		return src.GatherPositions(m.pool, selector)
	default:
		return nil, perrors.NewInvalidArgumentError("row index has no kind")
	}
}

// NaturalSource is the root whose storage the columns of table read from.
func (m *defaultMaterializer) NaturalSource(table *DataTable) *DataTable {
	if table.source != nil {
		return table.source
	}
	return table
}
