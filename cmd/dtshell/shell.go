package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/datatable/column"
	"github.com/squareup/datatable/datatable"
	"github.com/squareup/datatable/failinject"
	"github.com/squareup/datatable/perrors"
	"github.com/squareup/datatable/plugin"
	"github.com/squareup/datatable/rowindex"
)

const helpText = `demo <rows>                     create a root table with one column of each type
slice <start> <count> <step>    apply a slice selector to the current table
rows <pos> [<pos> ...]          apply an array selector to the current table
call <algorithm>                run an algorithm and apply the rows it selects
algorithms                      list the registered algorithms
info                            describe the current table
types [<type>]                  print the column types, or the indexes of the columns of one type
window <r0> <r1> <c0> <c1>      print rows [r0, r1) of columns [c0, c1)
fail <failpoint> [<nth>]        make a failpoint fail, from its nth check on
unfail <failpoint>              deactivate a failpoint
back                            destroy the current table and return to the previous one
drop                            destroy every table
help                            show this text`

// Shell holds a stack of tables. Each selector is applied to the table on top of the stack and the result is pushed.
type Shell struct {
	engine           *datatable.Engine
	injector         failinject.Injector
	failureInjection bool
	registry         *plugin.Registry
	tables           []*datatable.DataTable
	out              io.Writer
}

func NewShell(engine *datatable.Engine, injector failinject.Injector, failureInjection bool, registry *plugin.Registry,
	out io.Writer) *Shell {
	return &Shell{
		engine:           engine,
		injector:         injector,
		failureInjection: failureInjection,
		registry:         registry,
		out:              out,
	}
}

// Execute runs a single command line. Errors which are not DTErrors are logged and reported by reference only.
func (s *Shell) Execute(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	cmd, err := parseCommand(line)
	if err == nil {
		err = s.execute(strings.ToLower(cmd.Name), cmd.Args)
	}
	if err == nil {
		return nil
	}
	var dtErr perrors.DTError
	if errors.As(err, &dtErr) {
		return err
	}
	return perrors.LogInternalError(err)
}

func (s *Shell) execute(cmd string, args []string) error {
	switch cmd {
	case "demo":
		return s.demo(args)
	case "slice":
		return s.slice(args)
	case "rows":
		return s.rows(args)
	case "call":
		return s.call(args)
	case "algorithms":
		s.println(strings.Join(s.registry.Names(), "\n"))
		return nil
	case "info":
		return s.info()
	case "types":
		return s.types(args)
	case "window":
		current, err := s.current()
		if err != nil {
			return err
		}
		w, err := extractWindow(current, args)
		if err != nil {
			return err
		}
		s.println(w.String())
		return nil
	case "fail":
		return s.fail(args)
	case "unfail":
		return s.unfail(args)
	case "back":
		return s.back()
	case "drop":
		s.Close()
		return nil
	case "help":
		s.println(helpText)
		return nil
	default:
		return perrors.NewInvalidArgumentError(fmt.Sprintf("unknown command %s, try help", cmd))
	}
}

func (s *Shell) demo(args []string) error {
	if len(args) != 1 {
		return perrors.NewInvalidArgumentError("demo needs a row count")
	}
	nrows, err := parseInts(args)
	if err != nil {
		return err
	}
	if nrows[0] < 0 {
		return perrors.NewInvalidArgumentError("row count must not be negative")
	}
	table, err := newDemoTable(s.engine, int(nrows[0]))
	if err != nil {
		return err
	}
	s.Close()
	s.tables = append(s.tables, table)
	s.println(table.String())
	return nil
}

func (s *Shell) slice(args []string) error {
	if len(args) != 3 {
		return perrors.NewInvalidArgumentError("slice needs start, count and step")
	}
	vals, err := parseInts(args)
	if err != nil {
		return err
	}
	selector, err := rowindex.FromSlice(vals[0], vals[1], vals[2])
	if err != nil {
		return err
	}
	return s.apply(selector)
}

func (s *Shell) rows(args []string) error {
	if len(args) == 0 {
		return perrors.NewInvalidArgumentError("rows needs at least one position")
	}
	positions, err := parseInts(args)
	if err != nil {
		return err
	}
	return s.apply(rowindex.FromArray(positions))
}

func (s *Shell) call(args []string) error {
	if len(args) != 1 {
		return perrors.NewInvalidArgumentError("call needs an algorithm name")
	}
	current, err := s.current()
	if err != nil {
		return err
	}
	positions, err := s.registry.Call(args[0], current)
	if err != nil {
		return err
	}
	return s.apply(rowindex.FromArray(positions))
}

func (s *Shell) apply(selector *rowindex.RowIndex) error {
	current, err := s.current()
	if err != nil {
		return err
	}
	res, err := s.engine.Apply(current, selector)
	if err != nil {
		return err
	}
	s.tables = append(s.tables, res)
	s.println(res.String())
	return nil
}

type tableInfo struct {
	Depth       int
	Rows        int64
	Cols        int64
	ColumnTypes []string
	RowIndex    string
	Positions   []int64
	View        bool
	SourceRefs  int64
	PoolBytes   int64
}

func (s *Shell) info() error {
	current, err := s.current()
	if err != nil {
		return err
	}
	info := tableInfo{
		Depth:    len(s.tables) - 1,
		Rows:     current.RowCount(),
		Cols:     current.ColCount(),
		RowIndex: current.RowIndexKind().String(),
		View:     current.IsView(),
	}
	for _, ct := range current.ColumnTypes() {
		info.ColumnTypes = append(info.ColumnTypes, ct.Name)
	}
	if ri := current.RowIndex(); ri != nil {
		info.RowIndex = ri.String()
		if ri.Kind() == rowindex.KindArray {
			info.Positions = ri.Positions()
		}
	}
	if src := current.Source(); src != nil {
		info.SourceRefs = src.RefCount()
	}
	info.PoolBytes = s.engine.Pool().InUse()
	s.println(repr.String(info, repr.Indent("  ")))
	return nil
}

func (s *Shell) types(args []string) error {
	if len(args) > 1 {
		return perrors.NewInvalidArgumentError("types takes at most one type name")
	}
	current, err := s.current()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		names := make([]string, 0, current.ColCount())
		for _, ct := range current.ColumnTypes() {
			names = append(names, ct.Name)
		}
		s.println(strings.Join(names, " "))
		return nil
	}
	typ, ok := column.ParseType(args[0])
	if !ok {
		return perrors.NewTypeMismatchError(fmt.Sprintf("%q is not a column type", args[0]))
	}
	var indexes []string
	for i, ct := range current.ColumnTypes() {
		if ct.Type == typ {
			indexes = append(indexes, strconv.Itoa(i))
		}
	}
	s.println(strings.Join(indexes, " "))
	return nil
}

func (s *Shell) fail(args []string) error {
	if !s.failureInjection {
		return perrors.NewInvalidConfigurationError("failure injection is not enabled")
	}
	if len(args) < 1 || len(args) > 2 {
		return perrors.NewInvalidArgumentError("fail needs a failpoint name and optionally n")
	}
	fp, err := s.failpoint(args[0])
	if err != nil {
		return err
	}
	nth := int64(1)
	if len(args) == 2 {
		vals, err := parseInts(args[1:])
		if err != nil {
			return err
		}
		nth = vals[0]
	}
	name := args[0]
	fp.SetFailAction(failinject.FailOnNth(int(nth), func() error {
		return perrors.NewAllocationFailureError(0, s.engine.Pool().InUse(), s.engine.Pool().Limit())
	}))
	log.Infof("failpoint %s will fail from check %d", name, nth)
	return nil
}

func (s *Shell) unfail(args []string) error {
	if len(args) != 1 {
		return perrors.NewInvalidArgumentError("unfail needs a failpoint name")
	}
	fp, err := s.failpoint(args[0])
	if err != nil {
		return err
	}
	fp.Deactivate()
	return nil
}

func (s *Shell) failpoint(name string) (failinject.Failpoint, error) {
	for _, n := range s.injector.Names() {
		if n == name {
			return s.injector.GetFailpoint(name), nil
		}
	}
	return nil, perrors.NewInvalidArgumentError(
		fmt.Sprintf("unknown failpoint %s, known are %s", name, strings.Join(s.injector.Names(), ", ")))
}

func (s *Shell) back() error {
	current, err := s.current()
	if err != nil {
		return err
	}
	s.tables = s.tables[:len(s.tables)-1]
	s.engine.Destroy(current)
	return nil
}

// Close destroys every table on the stack, newest first.
func (s *Shell) Close() {
	for len(s.tables) > 0 {
		_ = s.back()
	}
}

func (s *Shell) current() (*datatable.DataTable, error) {
	if len(s.tables) == 0 {
		return nil, perrors.NewInvalidArgumentError("no table, create one with demo")
	}
	return s.tables[len(s.tables)-1], nil
}

func (s *Shell) println(str string) {
	if _, err := fmt.Fprintln(s.out, str); err != nil {
		log.Errorf("failed to write output %v", err)
	}
}

func parseInts(args []string) ([]int64, error) {
	vals := make([]int64, len(args))
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, perrors.NewTypeMismatchError(fmt.Sprintf("%q is not an integer", a))
		}
		vals[i] = v
	}
	return vals, nil
}

// newDemoTable builds a root table with a column of each type. Row i holds i, i/2, whether i is even, "row-i", a
// handle on "payload-i" and an undetermined value.
func newDemoTable(engine *datatable.Engine, nrows int) (*datatable.DataTable, error) {
	pool := engine.Pool()
	longs := make([]int64, nrows)
	doubles := make([]float64, nrows)
	bools := make([]bool, nrows)
	strs := make([]string, nrows)
	handles := make([]column.Handle, nrows)
	for i := 0; i < nrows; i++ {
		longs[i] = int64(i)
		doubles[i] = float64(i) / 2
		bools[i] = i%2 == 0
		strs[i] = fmt.Sprintf("row-%d", i)
		handles[i] = column.NewCountedHandle(fmt.Sprintf("payload-%d", i))
	}
	// the object column takes its own references
	defer func() {
		for _, h := range handles {
			h.Release()
		}
	}()

	var cols []*column.Column
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}
	builders := []func() (*column.Column, error){
		func() (*column.Column, error) { return column.NewLong(pool, longs) },
		func() (*column.Column, error) { return column.NewDouble(pool, doubles) },
		func() (*column.Column, error) { return column.NewBool(pool, bools) },
		func() (*column.Column, error) { return column.NewString(pool, strs) },
		func() (*column.Column, error) { return column.NewObject(pool, handles) },
		func() (*column.Column, error) { return column.NewAuto(int64(nrows)), nil },
	}
	for _, build := range builders {
		col, err := build()
		if err != nil {
			release()
			return nil, err
		}
		cols = append(cols, col)
	}
	table, err := engine.NewTable(cols...)
	if err != nil {
		release()
		return nil, err
	}
	return table, nil
}
