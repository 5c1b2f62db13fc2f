// Package rowindex describes which rows of a source table, and in which order, populate a derived table.
package rowindex

import (
	"fmt"
	"math"

	"github.com/squareup/datatable/perrors"
	"go.uber.org/atomic"
)

type Kind int

const (
	KindNone Kind = iota
	KindSlice
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSlice:
		return "slice"
	case KindArray:
		return "array"
	default:
		panic(fmt.Sprintf("unknown row index kind %d", int(k)))
	}
}

// RowIndex is immutable once constructed. Exactly one of the slice or array forms is active, as given by kind.
type RowIndex struct {
	kind      Kind
	start     int64
	count     int64
	step      int64
	positions []int64
	owned     atomic.Bool
}

// FromSlice creates a row index selecting rows start, start+step, ... count entries in total.
func FromSlice(start int64, count int64, step int64) (*RowIndex, error) {
	if count < 0 {
		return nil, perrors.NewInvalidArgumentError(fmt.Sprintf("slice count must be >= 0, got %d", count))
	}
	if count > 0 {
		if _, ok := lastSliceRow(start, count, step); !ok {
			return nil, perrors.NewInvalidArgumentError(fmt.Sprintf("slice (%d, %d, %d) overflows int64", start, count, step))
		}
	}
	return &RowIndex{kind: KindSlice, start: start, count: count, step: step}, nil
}

// FromArray creates a row index selecting the given positions in order. The positions are copied.
func FromArray(positions []int64) *RowIndex {
	cp := make([]int64, len(positions))
	copy(cp, positions)
	return &RowIndex{kind: KindArray, count: int64(len(cp)), positions: cp}
}

// Full returns a slice row index spanning all nrows rows
func Full(nrows int64) *RowIndex {
	ri, err := FromSlice(0, nrows, 1)
	if err != nil {
		panic(err)
	}
	return ri
}

func (r *RowIndex) Kind() Kind {
	return r.kind
}

func (r *RowIndex) Count() int64 {
	return r.count
}

// Slice returns the slice parameters. Panics if the row index is not a slice.
func (r *RowIndex) Slice() (start int64, count int64, step int64) {
	if r.kind != KindSlice {
		panic("row index is not a slice")
	}
	return r.start, r.count, r.step
}

// Positions returns a copy of the positions of an array row index. Panics if the row index is not an array.
func (r *RowIndex) Positions() []int64 {
	if r.kind != KindArray {
		panic("row index is not an array")
	}
	cp := make([]int64, len(r.positions))
	copy(cp, r.positions)
	return cp
}

// At returns the source row for the i-th selected row.
func (r *RowIndex) At(i int64) int64 {
	switch r.kind {
	case KindSlice:
		return r.start + i*r.step
	case KindArray:
		return r.positions[i]
	default:
		panic(fmt.Sprintf("unexpected row index kind %s", r.kind))
	}
}

// Validate checks that every selected row lies in [0, nrows).
func (r *RowIndex) Validate(nrows int64) error {
	switch r.kind {
	case KindSlice:
		if r.count == 0 {
			return nil
		}
		last, _ := lastSliceRow(r.start, r.count, r.step)
		if r.start < 0 || r.start >= nrows || last < 0 || last >= nrows {
			return perrors.NewInvalidArgumentError(
				fmt.Sprintf("slice (%d, %d, %d) selects rows outside [0, %d)", r.start, r.count, r.step, nrows))
		}
		return nil
	case KindArray:
		for i, pos := range r.positions {
			if pos < 0 || pos >= nrows {
				return perrors.NewInvalidArgumentError(
					fmt.Sprintf("array position %d at index %d is outside [0, %d)", pos, i, nrows))
			}
		}
		return nil
	default:
		panic(fmt.Sprintf("unexpected row index kind %s", r.kind))
	}
}

// Claim marks the row index as owned by a table. A row index can only ever have one owner.
func (r *RowIndex) Claim() error {
	if !r.owned.CompareAndSwap(false, true) {
		return perrors.NewInvalidArgumentError("row index already owned by a table")
	}
	return nil
}

// Unclaim hands ownership back to the caller. Used when the table that claimed the row index was never returned.
func (r *RowIndex) Unclaim() {
	r.owned.Store(false)
}

func (r *RowIndex) IsOwned() bool {
	return r.owned.Load()
}

func (r *RowIndex) String() string {
	switch r.kind {
	case KindSlice:
		return fmt.Sprintf("slice(start=%d, count=%d, step=%d)", r.start, r.count, r.step)
	case KindArray:
		return fmt.Sprintf("array(count=%d)", r.count)
	default:
		return r.kind.String()
	}
}

func lastSliceRow(start int64, count int64, step int64) (int64, bool) {
	n := count - 1
	if step != 0 && n != 0 {
		if n > math.MaxInt64/abs(step) {
			return 0, false
		}
	}
	delta := n * step
	if (delta > 0 && start > math.MaxInt64-delta) || (delta < 0 && start < math.MinInt64-delta) {
		return 0, false
	}
	return start + delta, true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
