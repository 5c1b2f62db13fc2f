package failinject

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const (
	// AllocColumn is checked by the engine before each output column is built.
	AllocColumn = "alloc_column"
	// AssembleTable is checked by the engine once all output columns are built, before the result table is assembled.
	AssembleTable = "assemble_table"
)

func NewInjector() Injector {
	return &defaultInjector{failpoints: make(map[string]*defaultFailpoint)}
}

type Injector interface {
	RegisterFailpoint(name string) (Failpoint, error)
	GetFailpoint(name string) Failpoint
	Names() []string
	Start() error
	Stop() error
}

type Failpoint interface {
	CheckFail() error
	SetFailAction(action FailAction)
	Deactivate()
}

type FailAction func() error

// FailOnNth returns an action which passes n-1 times and then returns the error produced by errFn on every later check.
func FailOnNth(n int, errFn func() error) FailAction {
	var calls atomic.Int64
	return func() error {
		if calls.Inc() < int64(n) {
			return nil
		}
		return errFn()
	}
}

type defaultInjector struct {
	failpoints map[string]*defaultFailpoint
	lock       sync.Mutex
}

type defaultFailpoint struct {
	name       string
	active     atomic.Bool
	lock       sync.Mutex
	failAction FailAction
}

func (i *defaultInjector) RegisterFailpoint(name string) (Failpoint, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	if _, ok := i.failpoints[name]; ok {
		return nil, errors.Errorf("failpoint %s already registered", name)
	}
	fp := &defaultFailpoint{
		name: name,
	}
	i.failpoints[name] = fp
	return fp, nil
}

func (i *defaultInjector) GetFailpoint(name string) Failpoint {
	i.lock.Lock()
	defer i.lock.Unlock()
	fp, ok := i.failpoints[name]
	if !ok {
		panic(fmt.Sprintf("no failpoint registered with name %s", name))
	}
	return fp
}

func (i *defaultInjector) Names() []string {
	i.lock.Lock()
	defer i.lock.Unlock()
	names := make([]string, 0, len(i.failpoints))
	for name := range i.failpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *defaultFailpoint) CheckFail() error {
	if !f.active.Load() {
		return nil
	}
	f.lock.Lock()
	action := f.failAction
	f.lock.Unlock()
	if action == nil {
		return errors.Errorf("no fail action specfied for failpoint %s", f.name)
	}
	return action()
}

func (f *defaultFailpoint) SetFailAction(action FailAction) {
	f.lock.Lock()
	f.failAction = action
	f.lock.Unlock()
	f.active.Store(true)
}

func (f *defaultFailpoint) Deactivate() {
	f.active.Store(false)
	f.lock.Lock()
	f.failAction = nil
	f.lock.Unlock()
}

func (i *defaultInjector) Start() error {
	return i.registerFailpoints()
}

func (i *defaultInjector) Stop() error {
	return nil
}

func (i *defaultInjector) registerFailpoints() error {
	for _, name := range []string{AllocColumn, AssembleTable} {
		if _, err := i.RegisterFailpoint(name); err != nil {
			return err
		}
	}
	return nil
}
