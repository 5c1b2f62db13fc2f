// Package plugin holds the row selection algorithms which can be invoked by name against a table.
//
// An algorithm reads a table and writes row positions into a buffer supplied by the registry. The positions are
// meant to be turned into a selector with rowindex.FromArray and applied through the engine.
package plugin

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/datatable/datatable"
	"github.com/squareup/datatable/perrors"
)

// Algorithm writes selected row positions of t into out, which is zero filled and has one slot per row of t, and
// returns how many it wrote.
type Algorithm func(t *datatable.DataTable, out []int64) (int64, error)

type Registry struct {
	lock       sync.RWMutex
	algorithms *btree.BTree
}

type algorithmItem struct {
	name string
	fn   Algorithm
}

func (a *algorithmItem) Less(than btree.Item) bool {
	return a.name < than.(*algorithmItem).name
}

func NewRegistry() *Registry {
	return &Registry{algorithms: btree.New(3)}
}

// Register adds an algorithm under name. Names are unique.
func (r *Registry) Register(name string, fn Algorithm) error {
	if name == "" || fn == nil {
		return perrors.NewInvalidArgumentError("algorithm needs a name and a function")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	item := &algorithmItem{name: name, fn: fn}
	if r.algorithms.Has(item) {
		return perrors.NewInvalidArgumentError(fmt.Sprintf("algorithm %s is already registered", name))
	}
	r.algorithms.ReplaceOrInsert(item)
	return nil
}

// Call runs the named algorithm against t and returns the positions it selected.
func (r *Registry) Call(name string, t *datatable.DataTable) ([]int64, error) {
	r.lock.RLock()
	item := r.algorithms.Get(&algorithmItem{name: name})
	r.lock.RUnlock()
	if item == nil {
		return nil, perrors.NewUnknownAlgorithmError(name)
	}
	if t == nil || t.Destroyed() {
		return nil, perrors.NewInvalidArgumentError("algorithm needs a live data table")
	}
	nrows := t.RowCount()
	out := make([]int64, nrows)
	n, err := item.(*algorithmItem).fn(t, out)
	if err != nil {
		return nil, perrors.MaybeAddStack(err)
	}
	if n < 0 || n > nrows {
		return nil, perrors.LogInternalError(
			errors.Errorf("algorithm %s reported %d positions for a table of %d rows", name, n, nrows))
	}
	log.Debugf("algorithm %s selected %d of %d rows", name, n, nrows)
	return out[:n], nil
}

// Names returns the registered algorithm names in order.
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	names := make([]string, 0, r.algorithms.Len())
	r.algorithms.Ascend(func(i btree.Item) bool {
		names = append(names, i.(*algorithmItem).name)
		return true
	})
	return names
}

var defaultRegistry = NewRegistry()

// Register adds an algorithm to the default registry.
func Register(name string, fn Algorithm) error {
	return defaultRegistry.Register(name, fn)
}

// Call runs an algorithm from the default registry.
func Call(name string, t *datatable.DataTable) ([]int64, error) {
	return defaultRegistry.Call(name, t)
}

func Names() []string {
	return defaultRegistry.Names()
}

func Default() *Registry {
	return defaultRegistry
}
