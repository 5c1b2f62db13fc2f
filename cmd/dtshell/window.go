package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cznic/mathutil"
	"github.com/squareup/datatable/column"
	"github.com/squareup/datatable/datatable"
	"github.com/squareup/datatable/perrors"
)

const naValue = "NA"

// window is a rectangular extract of a table, rows [RowStart, RowEnd) by columns [ColStart, ColEnd).
type window struct {
	RowStart, RowEnd int64
	ColStart, ColEnd int64
	Types            []string
	Cells            [][]string
}

// extractWindow reads the cells of t within the given bounds. All four bounds must be integers. They are clamped to
// the table, and an end before its start gives an empty range.
func extractWindow(t *datatable.DataTable, bounds []string) (*window, error) {
	if len(bounds) != 4 {
		return nil, perrors.NewInvalidArgumentError("window needs four bounds: row_start row_end col_start col_end")
	}
	parsed := make([]int64, 4)
	for i, b := range bounds {
		v, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			return nil, perrors.NewTypeMismatchError(fmt.Sprintf("window bound %q is not an integer", b))
		}
		parsed[i] = v
	}
	w := &window{}
	w.RowStart = mathutil.ClampInt64(parsed[0], 0, t.RowCount())
	w.RowEnd = mathutil.ClampInt64(parsed[1], w.RowStart, t.RowCount())
	w.ColStart = mathutil.ClampInt64(parsed[2], 0, t.ColCount())
	w.ColEnd = mathutil.ClampInt64(parsed[3], w.ColStart, t.ColCount())

	for c := w.ColStart; c < w.ColEnd; c++ {
		w.Types = append(w.Types, t.Column(int(c)).Type().Name)
	}
	if w.ColStart == w.ColEnd {
		return w, nil
	}
	for r := w.RowStart; r < w.RowEnd; r++ {
		row := make([]string, 0, w.ColEnd-w.ColStart)
		for c := w.ColStart; c < w.ColEnd; c++ {
			row = append(row, formatCell(t.Column(int(c)), r))
		}
		w.Cells = append(w.Cells, row)
	}
	return w, nil
}

func formatCell(col *column.Column, row int64) string {
	switch col.Type().Type {
	case column.TypeDouble:
		return strconv.FormatFloat(col.Double(row), 'g', -1, 64)
	case column.TypeObject:
		if h := col.Object(row); h != nil {
			return fmt.Sprintf("%v", h)
		}
		return naValue
	case column.TypeAuto:
		return naValue
	default:
		return fmt.Sprintf("%v", col.Value(row))
	}
}

func (w *window) String() string {
	sb := &strings.Builder{}
	sb.WriteString(strings.Join(w.Types, "|"))
	for _, row := range w.Cells {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(row, "|"))
	}
	return sb.String()
}
