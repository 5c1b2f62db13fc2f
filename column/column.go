// Package column provides typed column storage for data tables.
//
// The storage of a column lives in reference counted buffers. Several columns can hold the same buffers, each
// addressing it through its own offset and stride, so restricting a column to a slice of rows never copies data.
// Selecting an arbitrary set of rows gathers the values into new buffers owned by the resulting column.
package column

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/squareup/datatable/alloc"
)

type Column struct {
	ctype    *ColumnType
	length   int64
	offset   int64
	stride   int64
	data     *memory.Buffer
	strData  *memory.Buffer
	objects  *ObjectStore
	released bool
}

func NewLong(pool *alloc.Pool, values []int64) (*Column, error) {
	buf, err := pool.NewBuffer(int64(arrow.Int64Traits.BytesRequired(len(values))))
	if err != nil {
		return nil, err
	}
	copy(arrow.Int64Traits.CastFromBytes(buf.Bytes()), values)
	return newOwned(LongColumnType, int64(len(values)), buf), nil
}

func NewDouble(pool *alloc.Pool, values []float64) (*Column, error) {
	buf, err := pool.NewBuffer(int64(arrow.Float64Traits.BytesRequired(len(values))))
	if err != nil {
		return nil, err
	}
	copy(arrow.Float64Traits.CastFromBytes(buf.Bytes()), values)
	return newOwned(DoubleColumnType, int64(len(values)), buf), nil
}

func NewBool(pool *alloc.Pool, values []bool) (*Column, error) {
	buf, err := pool.NewBuffer(int64(len(values)))
	if err != nil {
		return nil, err
	}
	b := buf.Bytes()
	for i, v := range values {
		if v {
			b[i] = 1
		}
	}
	return newOwned(BoolColumnType, int64(len(values)), buf), nil
}

func NewString(pool *alloc.Pool, values []string) (*Column, error) {
	total := 0
	for _, v := range values {
		total += len(v)
	}
	return buildStrings(pool, len(values), total, func(i int) string { return values[i] })
}

// NewObject creates an Object column. The column takes its own reference on every non-nil handle, the caller keeps
// theirs.
func NewObject(pool *alloc.Pool, handles []Handle) (*Column, error) {
	cp := make([]Handle, len(handles))
	copy(cp, handles)
	for _, h := range cp {
		if h != nil {
			h.Retain()
		}
	}
	store, err := newObjectStore(pool, cp)
	if err != nil {
		for _, h := range cp {
			if h != nil {
				h.Release()
			}
		}
		return nil, err
	}
	return &Column{ctype: ObjectColumnType, length: int64(len(cp)), stride: 1, objects: store}, nil
}

// NewAuto creates a column of undetermined type. It has a length but no storage.
func NewAuto(nrows int64) *Column {
	return &Column{ctype: AutoColumnType, length: nrows, stride: 1}
}

func newOwned(ctype *ColumnType, length int64, data *memory.Buffer) *Column {
	return &Column{ctype: ctype, length: length, stride: 1, data: data}
}

func buildStrings(pool *alloc.Pool, n int, totalBytes int, get func(i int) string) (*Column, error) {
	offBuf, err := pool.NewBuffer(int64(arrow.Int64Traits.BytesRequired(n + 1)))
	if err != nil {
		return nil, err
	}
	dataBuf, err := pool.NewBuffer(int64(totalBytes))
	if err != nil {
		offBuf.Release()
		return nil, err
	}
	offsets := arrow.Int64Traits.CastFromBytes(offBuf.Bytes())
	bytes := dataBuf.Bytes()
	pos := 0
	for i := 0; i < n; i++ {
		offsets[i] = int64(pos)
		pos += copy(bytes[pos:], get(i))
	}
	offsets[n] = int64(pos)
	col := newOwned(StringColumnType, int64(n), offBuf)
	col.strData = dataBuf
	return col, nil
}

func (c *Column) Type() *ColumnType {
	return c.ctype
}

func (c *Column) Len() int64 {
	return c.length
}

// SharesStorage returns true if both columns read from the same underlying buffers.
func (c *Column) SharesStorage(other *Column) bool {
	return c.data == other.data && c.strData == other.strData && c.objects == other.objects
}

// SliceView returns a column over rows start, start+step, ... of this column, count rows in total. The view retains
// the buffers of this column and no data is copied. The caller is responsible for the bounds.
func (c *Column) SliceView(start int64, count int64, step int64) *Column {
	c.checkLive()
	view := &Column{
		ctype:   c.ctype,
		length:  count,
		offset:  c.offset + start*c.stride,
		stride:  c.stride * step,
		data:    c.data,
		strData: c.strData,
		objects: c.objects,
	}
	if count == 0 {
		view.offset, view.stride = 0, 1
	}
	view.retainStorage()
	return view
}

// Positions is an ordered sequence of row positions. *rowindex.RowIndex satisfies it without copying.
type Positions interface {
	Count() int64
	At(i int64) int64
}

type positionSlice []int64

func (p positionSlice) Count() int64 {
	return int64(len(p))
}

func (p positionSlice) At(i int64) int64 {
	return p[i]
}

// Gather returns a new column holding, for each i, the value at row positions[i] of this column. The new column owns
// freshly allocated buffers. The caller is responsible for the bounds.
func (c *Column) Gather(pool *alloc.Pool, positions []int64) (*Column, error) {
	return c.GatherPositions(pool, positionSlice(positions))
}

// GatherPositions is Gather reading the positions through rows.
func (c *Column) GatherPositions(pool *alloc.Pool, rows Positions) (*Column, error) {
	c.checkLive()
	n := int(rows.Count())
	switch c.ctype.Type {
	case TypeAuto:
		return NewAuto(int64(n)), nil
	case TypeDouble, TypeLong:
		buf, err := pool.NewBuffer(int64(arrow.Int64Traits.BytesRequired(n)))
		if err != nil {
			return nil, err
		}
		// Doubles are moved as their 8 byte patterns.
		src := arrow.Int64Traits.CastFromBytes(c.data.Bytes())
		dst := arrow.Int64Traits.CastFromBytes(buf.Bytes())
		for i := 0; i < n; i++ {
			dst[i] = src[c.physical(rows.At(int64(i)))]
		}
		return newOwned(c.ctype, int64(n), buf), nil
	case TypeBool:
		buf, err := pool.NewBuffer(int64(n))
		if err != nil {
			return nil, err
		}
		src, dst := c.data.Bytes(), buf.Bytes()
		for i := 0; i < n; i++ {
			dst[i] = src[c.physical(rows.At(int64(i)))]
		}
		return newOwned(BoolColumnType, int64(n), buf), nil
	case TypeString:
		total := 0
		for i := 0; i < n; i++ {
			total += len(c.StringValue(rows.At(int64(i))))
		}
		return buildStrings(pool, n, total, func(i int) string { return c.StringValue(rows.At(int64(i))) })
	case TypeObject:
		handles := make([]Handle, n)
		for i := range handles {
			h := c.objects.get(c.physical(rows.At(int64(i))))
			if h != nil {
				h.Retain()
			}
			handles[i] = h
		}
		store, err := newObjectStore(pool, handles)
		if err != nil {
			for _, h := range handles {
				if h != nil {
					h.Release()
				}
			}
			return nil, err
		}
		return &Column{ctype: ObjectColumnType, length: int64(n), stride: 1, objects: store}, nil
	default:
		panic(fmt.Sprintf("unexpected column type %d", int(c.ctype.Type)))
	}
}

// Release drops this column's hold on its storage. Storage shared with other columns stays alive until they release
// it too. For Object columns the last release gives back every element handle.
func (c *Column) Release() {
	if c.released {
		panic("column released twice")
	}
	c.released = true
	if c.data != nil {
		c.data.Release()
	}
	if c.strData != nil {
		c.strData.Release()
	}
	if c.objects != nil {
		c.objects.Release()
	}
	c.data, c.strData, c.objects = nil, nil, nil
}

func (c *Column) Released() bool {
	return c.released
}

func (c *Column) Long(i int64) int64 {
	c.checkType(TypeLong)
	return arrow.Int64Traits.CastFromBytes(c.data.Bytes())[c.physical(i)]
}

func (c *Column) Double(i int64) float64 {
	c.checkType(TypeDouble)
	return arrow.Float64Traits.CastFromBytes(c.data.Bytes())[c.physical(i)]
}

func (c *Column) Bool(i int64) bool {
	c.checkType(TypeBool)
	return c.data.Bytes()[c.physical(i)] != 0
}

func (c *Column) StringValue(i int64) string {
	c.checkType(TypeString)
	p := c.physical(i)
	offsets := arrow.Int64Traits.CastFromBytes(c.data.Bytes())
	return string(c.strData.Bytes()[offsets[p]:offsets[p+1]])
}

func (c *Column) Object(i int64) Handle {
	c.checkType(TypeObject)
	return c.objects.get(c.physical(i))
}

// Value returns the element at row i as a Go value; nil for Auto columns.
func (c *Column) Value(i int64) interface{} {
	switch c.ctype.Type {
	case TypeAuto:
		c.checkLive()
		return nil
	case TypeDouble:
		return c.Double(i)
	case TypeLong:
		return c.Long(i)
	case TypeBool:
		return c.Bool(i)
	case TypeString:
		return c.StringValue(i)
	case TypeObject:
		return c.Object(i)
	default:
		panic(fmt.Sprintf("unexpected column type %d", int(c.ctype.Type)))
	}
}

func (c *Column) physical(i int64) int64 {
	if i < 0 || i >= c.length {
		panic(fmt.Sprintf("row %d out of range [0, %d)", i, c.length))
	}
	return c.offset + i*c.stride
}

func (c *Column) retainStorage() {
	if c.data != nil {
		c.data.Retain()
	}
	if c.strData != nil {
		c.strData.Retain()
	}
	if c.objects != nil {
		c.objects.Retain()
	}
}

func (c *Column) checkType(t Type) {
	c.checkLive()
	if c.ctype.Type != t {
		panic(fmt.Sprintf("column of type %s read as %s", c.ctype.Name, t))
	}
}

func (c *Column) checkLive() {
	if c.released {
		panic("column used after release")
	}
}
