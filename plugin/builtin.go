package plugin

import (
	"github.com/squareup/datatable/column"
	"github.com/squareup/datatable/datatable"
	"github.com/squareup/datatable/perrors"
)

const (
	IdentityAlgorithm = "identity"
	ReverseAlgorithm  = "reverse"
	EvenRowsAlgorithm = "even_rows"
	NonZeroAlgorithm  = "nonzero"
)

func init() {
	for name, fn := range map[string]Algorithm{
		IdentityAlgorithm: identity,
		ReverseAlgorithm:  reverse,
		EvenRowsAlgorithm: evenRows,
		NonZeroAlgorithm:  nonZero,
	} {
		if err := Register(name, fn); err != nil {
			panic(err)
		}
	}
}

func identity(t *datatable.DataTable, out []int64) (int64, error) {
	for i := range out {
		out[i] = int64(i)
	}
	return t.RowCount(), nil
}

func reverse(t *datatable.DataTable, out []int64) (int64, error) {
	n := t.RowCount()
	for i := range out {
		out[i] = n - 1 - int64(i)
	}
	return n, nil
}

func evenRows(t *datatable.DataTable, out []int64) (int64, error) {
	var n int64
	for row := int64(0); row < t.RowCount(); row += 2 {
		out[n] = row
		n++
	}
	return n, nil
}

// nonZero selects the rows where the first Long, Double or Bool column is non zero.
func nonZero(t *datatable.DataTable, out []int64) (int64, error) {
	var col *column.Column
	for i := 0; i < int(t.ColCount()); i++ {
		switch t.Column(i).Type().Type {
		case column.TypeLong, column.TypeDouble, column.TypeBool:
			col = t.Column(i)
		}
		if col != nil {
			break
		}
	}
	if col == nil {
		return 0, perrors.NewTypeMismatchError("nonzero needs a column of type int, real or bool")
	}
	var n int64
	for row := int64(0); row < col.Len(); row++ {
		var set bool
		switch col.Type().Type {
		case column.TypeLong:
			set = col.Long(row) != 0
		case column.TypeDouble:
			set = col.Double(row) != 0
		case column.TypeBool:
			set = col.Bool(row)
		}
		if set {
			out[n] = row
			n++
		}
	}
	return n, nil
}
