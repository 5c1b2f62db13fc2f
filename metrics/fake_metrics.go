package metrics

import (
	"sync"

	"github.com/pkg/errors"
)

// FakeFactory keeps metric values in memory so tests can inspect them.
type FakeFactory struct {
	lock     sync.Mutex
	counters map[string]*FakeCounter
	gauges   map[string]*FakeGauge
}

func NewFakeFactory() *FakeFactory {
	return &FakeFactory{
		counters: make(map[string]*FakeCounter),
		gauges:   make(map[string]*FakeGauge),
	}
}

func (f *FakeFactory) CreateCounter(name string, description string) (Counter, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.counters[name]; ok {
		return nil, errors.Errorf("counter %s already exists", name)
	}
	c := &FakeCounter{}
	f.counters[name] = c
	return c, nil
}

func (f *FakeFactory) CreateGauge(name string, description string) (Gauge, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.gauges[name]; ok {
		return nil, errors.Errorf("gauge %s already exists", name)
	}
	g := &FakeGauge{}
	f.gauges[name] = g
	return g, nil
}

// CounterValue returns the value of the named counter, or 0 if it doesn't exist
func (f *FakeFactory) CounterValue(name string) float64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	c, ok := f.counters[name]
	if !ok {
		return 0
	}
	return c.Value()
}

// GaugeValue returns the value of the named gauge, or 0 if it doesn't exist
func (f *FakeFactory) GaugeValue(name string) float64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	g, ok := f.gauges[name]
	if !ok {
		return 0
	}
	return g.Value()
}

func (f *FakeFactory) Start() error {
	return nil
}

func (f *FakeFactory) Stop() error {
	return nil
}

type FakeCounter struct {
	lock sync.Mutex
	val  float64
}

func (c *FakeCounter) Inc() {
	c.Add(1)
}

func (c *FakeCounter) Add(delta float64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.val += delta
}

func (c *FakeCounter) Value() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.val
}

type FakeGauge struct {
	lock sync.Mutex
	val  float64
}

func (g *FakeGauge) Set(value float64) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.val = value
}

func (g *FakeGauge) Value() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.val
}
