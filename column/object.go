package column

import (
	"fmt"

	"github.com/squareup/datatable/alloc"
	"go.uber.org/atomic"
)

// Handle is an externally reference counted value stored in an Object column.
type Handle interface {
	Retain()
	Release()
}

// handleSize is what an object slot is charged against the pool.
const handleSize = 16

// ObjectStore holds the handles of an Object column. The store holds one reference on each non-nil handle and gives
// them all back when its own reference count drops to zero.
type ObjectStore struct {
	refCount atomic.Int64
	handles  []Handle
	pool     *alloc.Pool
}

// newObjectStore takes ownership of one reference on every non-nil handle. The caller must have retained them.
func newObjectStore(pool *alloc.Pool, handles []Handle) (*ObjectStore, error) {
	if err := pool.Charge(int64(len(handles)) * handleSize); err != nil {
		return nil, err
	}
	s := &ObjectStore{handles: handles, pool: pool}
	s.refCount.Store(1)
	return s, nil
}

func (s *ObjectStore) Retain() {
	s.refCount.Inc()
}

func (s *ObjectStore) Release() {
	n := s.refCount.Dec()
	if n < 0 {
		panic("object store released too many times")
	}
	if n > 0 {
		return
	}
	for i, h := range s.handles {
		if h != nil {
			h.Release()
			s.handles[i] = nil
		}
	}
	s.pool.Refund(int64(len(s.handles)) * handleSize)
	s.handles = nil
}

func (s *ObjectStore) get(i int64) Handle {
	return s.handles[i]
}

// CountedHandle is a Handle carrying an arbitrary value with an inspectable reference count. It is created with a
// count of one, owned by the caller.
type CountedHandle struct {
	Value interface{}
	refs  atomic.Int64
}

func NewCountedHandle(value interface{}) *CountedHandle {
	h := &CountedHandle{Value: value}
	h.refs.Store(1)
	return h
}

func (h *CountedHandle) Retain() {
	h.refs.Inc()
}

func (h *CountedHandle) Release() {
	if h.refs.Dec() < 0 {
		panic(fmt.Sprintf("handle %v released too many times", h.Value))
	}
}

func (h *CountedHandle) RefCount() int64 {
	return h.refs.Load()
}

func (h *CountedHandle) String() string {
	return fmt.Sprintf("%v", h.Value)
}
