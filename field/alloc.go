package field

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfMemory is returned when an allocation would exceed the storage budget.
var ErrOutOfMemory = errors.New("field: storage budget exhausted")

// AllocationError reports a failed storage reservation.
type AllocationError struct {
	Shape     Shape
	Requested int64
	Available int64
	Err       error
}

func (e *AllocationError) Error() string {
	if errors.Is(e.Err, ErrOutOfMemory) {
		return fmt.Sprintf("field: allocate %s: %d bytes requested, %d available: %v",
			e.Shape, e.Requested, e.Available, e.Err)
	}
	return fmt.Sprintf("field: allocate %s: %v", e.Shape, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Allocator reserves and releases Field storage.
type Allocator interface {
	Allocate(shape Shape) (*Field, error)
	Release(f *Field)
}

// HeapAllocator allocates Fields from the Go heap against a byte budget.
// A zero budget means unlimited.
type HeapAllocator struct {
	mu     sync.Mutex
	budget int64
	inUse  int64
	live   int
}

// NewHeapAllocator creates an allocator with the given budget in bytes.
func NewHeapAllocator(budget int64) *HeapAllocator {
	return &HeapAllocator{budget: budget}
}

// Allocate reserves storage for shape.
func (a *HeapAllocator) Allocate(shape Shape) (*Field, error) {
	if err := shape.Validate(); err != nil {
		return nil, &AllocationError{Shape: shape, Err: err}
	}

	size := shape.Bytes()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.budget > 0 && a.inUse+size > a.budget {
		return nil, &AllocationError{
			Shape:     shape,
			Requested: size,
			Available: a.budget - a.inUse,
			Err:       ErrOutOfMemory,
		}
	}
	a.inUse += size
	a.live++
	return newField(shape), nil
}

// Release returns f's storage to the budget. f must not be used afterwards.
func (a *HeapAllocator) Release(f *Field) {
	if f == nil || f.data == nil {
		return
	}
	a.mu.Lock()
	a.inUse -= f.shape.Bytes()
	a.live--
	a.mu.Unlock()
	f.data = nil
}

// InUse returns the number of bytes currently reserved.
func (a *HeapAllocator) InUse() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Live returns the number of Fields currently allocated.
func (a *HeapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}
