package inventory

import (
	"context"
	"sync"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

type MemoryFinder struct {
	mu   sync.RWMutex
	cars []statex.Vehicle
}

var _ contractx.VehicleFinder = (*MemoryFinder)(nil)

func NewMemoryFinder(cars ...Car) *MemoryFinder {
	f := &MemoryFinder{}
	f.Add(cars...)
	return f
}

func (f *MemoryFinder) Add(cars ...Car) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cars {
		f.cars = append(f.cars, c.Vehicle())
	}
}

func (f *MemoryFinder) Find(_ context.Context, filters contractx.VehicleFilters, limit int) ([]statex.Vehicle, error) {
	f.mu.RLock()
	out := make([]statex.Vehicle, 0, len(f.cars))
	for _, v := range f.cars {
		if Match(v, filters) {
			out = append(out, v.Clone())
		}
	}
	f.mu.RUnlock()

	Sort(out)
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
