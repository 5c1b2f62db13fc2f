// Package alloc provides the byte-budgeted allocator that backs column storage.
package alloc

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/squareup/datatable/perrors"
	"go.uber.org/atomic"
)

// Pool wraps an arrow allocator and keeps track of the bytes currently handed out. When a limit is set, requests
// which would take usage above it fail with an AllocationFailure instead of allocating.
//
// Pool itself satisfies memory.Allocator so that buffers created by it return their memory through Free, which keeps
// the accounting exact.
type Pool struct {
	mem   memory.Allocator
	limit int64
	inUse atomic.Int64
}

// NewPool creates a pool on top of mem. A limit of zero means unlimited.
func NewPool(mem memory.Allocator, limit int64) *Pool {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Pool{mem: mem, limit: limit}
}

// NewBuffer allocates an nbytes buffer with a reference count of one. The memory goes back to the pool when the
// last reference is released.
func (p *Pool) NewBuffer(nbytes int64) (*memory.Buffer, error) {
	if err := p.Charge(nbytes); err != nil {
		return nil, err
	}
	// The charge is only a reservation, Allocate records the real usage.
	p.Refund(nbytes)
	if nbytes == 0 {
		return memory.NewBufferBytes(nil), nil
	}
	return memory.NewBufferWithAllocator(p.Allocate(int(nbytes)), p), nil
}

// Charge accounts for nbytes of memory that is not allocated through the pool, failing if the limit would be exceeded.
func (p *Pool) Charge(nbytes int64) error {
	for {
		cur := p.inUse.Load()
		if p.limit > 0 && cur+nbytes > p.limit {
			return perrors.NewAllocationFailureError(nbytes, cur, p.limit)
		}
		if p.inUse.CompareAndSwap(cur, cur+nbytes) {
			return nil
		}
	}
}

// Refund returns nbytes previously taken with Charge.
func (p *Pool) Refund(nbytes int64) {
	if p.inUse.Sub(nbytes) < 0 {
		panic("pool usage went negative")
	}
}

func (p *Pool) Allocate(size int) []byte {
	p.inUse.Add(int64(size))
	return p.mem.Allocate(size)
}

func (p *Pool) Reallocate(size int, b []byte) []byte {
	p.inUse.Add(int64(size - len(b)))
	return p.mem.Reallocate(size, b)
}

func (p *Pool) Free(b []byte) {
	p.Refund(int64(len(b)))
	p.mem.Free(b)
}

// InUse returns the number of bytes currently allocated or charged.
func (p *Pool) InUse() int64 {
	return p.inUse.Load()
}

func (p *Pool) Limit() int64 {
	return p.limit
}
