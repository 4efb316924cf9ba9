// Package slots owns all Field storage and tracks, per named slot, which
// Field is current and which are retained as history.
package slots

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pthm-cable/fieldfx/field"
)

var (
	// ErrHistoryUnderflow is returned when a delay exceeds the retained history.
	ErrHistoryUnderflow = errors.New("slots: history underflow")
	// ErrUnknownSlot is returned for slot names that were never allocated.
	ErrUnknownSlot = errors.New("slots: unknown slot")
	// ErrSlotExists is returned when allocating a name twice.
	ErrSlotExists = errors.New("slots: slot already allocated")
	// ErrNotInFlight is returned when committing a Field that was not acquired from the slot.
	ErrNotInFlight = errors.New("slots: field was not acquired from this slot")
	// ErrInvalidDepth is returned for history depths below one.
	ErrInvalidDepth = errors.New("slots: history depth must be at least 1")
)

// Initializer fills one texel of a freshly (re)allocated current Field.
type Initializer func(x, y int, shape field.Shape, texel []float32)

// Option configures a slot at allocation time.
type Option func(*slot)

// WithInit sets the initializer applied to the current Field after
// allocation and after every Reshape.
func WithInit(fn Initializer) Option {
	return func(s *slot) { s.init = fn }
}

type slot struct {
	name  string
	shape field.Shape
	depth int
	init  Initializer

	// history[0] is current; history[k] was current k commits ago.
	history  []*field.Field
	free     []*field.Field
	inflight map[uint64]*field.Field
	commits  uint64
}

// Set is the FieldSlotSet. Reads (CurrentOf, HistoricalOf) may run
// concurrently; structural changes take the write lock.
type Set struct {
	mu    sync.RWMutex
	alloc field.Allocator
	slots map[string]*slot
}

// NewSet creates an empty slot set drawing storage from alloc.
func NewSet(alloc field.Allocator) *Set {
	return &Set{
		alloc: alloc,
		slots: make(map[string]*slot),
	}
}

// Allocate creates depth Fields for a new slot. One of them becomes the
// initial current Field (zeros unless WithInit is given); the rest are
// pooled as write targets.
func (s *Set) Allocate(name string, shape field.Shape, depth int, opts ...Option) error {
	if depth < 1 {
		return fmt.Errorf("%w: slot %q depth %d", ErrInvalidDepth, name, depth)
	}
	if err := shape.Validate(); err != nil {
		return &field.AllocationError{Shape: shape, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[name]; ok {
		return fmt.Errorf("%w: %q", ErrSlotExists, name)
	}

	sl := &slot{name: name, shape: shape, depth: depth}
	for _, opt := range opts {
		opt(sl)
	}
	if err := s.populate(sl, shape); err != nil {
		return fmt.Errorf("slot %q: %w", name, err)
	}
	s.slots[name] = sl
	return nil
}

// populate allocates depth Fields of shape into sl, replacing any previous
// storage only once every allocation succeeded.
func (s *Set) populate(sl *slot, shape field.Shape) error {
	fields := make([]*field.Field, 0, sl.depth)
	for i := 0; i < sl.depth; i++ {
		f, err := s.alloc.Allocate(shape)
		if err != nil {
			for _, done := range fields {
				s.alloc.Release(done)
			}
			return err
		}
		fields = append(fields, f)
	}

	current := fields[0]
	if sl.init != nil {
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				sl.init(x, y, shape, current.Texel(x, y))
			}
		}
	}

	sl.shape = shape
	sl.history = []*field.Field{current}
	sl.free = fields[1:]
	sl.inflight = make(map[uint64]*field.Field)
	sl.commits = 0
	return nil
}

func (s *Set) lookup(name string) (*slot, error) {
	sl, ok := s.slots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}
	return sl, nil
}

// CurrentOf returns the most recently committed Field of the slot.
func (s *Set) CurrentOf(name string) (field.View, error) {
	return s.HistoricalOf(name, 0)
}

// HistoricalOf returns the Field that was current framesAgo commits ago.
func (s *Set) HistoricalOf(name string, framesAgo int) (field.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, err := s.lookup(name)
	if err != nil {
		return field.View{}, err
	}
	if framesAgo < 0 || framesAgo >= len(sl.history) {
		return field.View{}, fmt.Errorf("%w: slot %q has %d of %d frames, %d requested",
			ErrHistoryUnderflow, name, len(sl.history), sl.depth, framesAgo)
	}
	return sl.history[framesAgo].View(), nil
}

// Retained returns how many committed Fields are available for history reads.
func (s *Set) Retained(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.slots[name]; ok {
		return len(sl.history)
	}
	return 0
}

// Depth returns the configured history depth of the slot.
func (s *Set) Depth(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.slots[name]; ok {
		return sl.depth
	}
	return 0
}

// Shape returns the shape of the slot's Fields.
func (s *Set) Shape(name string) (field.Shape, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, err := s.lookup(name)
	if err != nil {
		return field.Shape{}, err
	}
	return sl.shape, nil
}

// Names returns the allocated slot names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.slots))
	for name := range s.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Acquire hands out a write target for the slot. The target is never one
// of the retained Fields. When the pool is empty a new Field is allocated.
func (s *Set) Acquire(name string) (*field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	var f *field.Field
	if n := len(sl.free); n > 0 {
		f = sl.free[n-1]
		sl.free = sl.free[:n-1]
	} else {
		f, err = s.alloc.Allocate(sl.shape)
		if err != nil {
			return nil, fmt.Errorf("slot %q write target: %w", name, err)
		}
	}
	sl.inflight[f.ID()] = f
	return f, nil
}

// Release returns an uncommitted write target to the pool. Its contents are
// discarded; the slot's current Field is unaffected.
func (s *Set) Release(name string, f *field.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[name]
	if !ok || f == nil {
		return
	}
	if _, ok := sl.inflight[f.ID()]; !ok {
		return
	}
	delete(sl.inflight, f.ID())
	sl.free = append(sl.free, f)
}

// Commit marks f as the slot's current Field and rotates history. When more
// than depth Fields are retained the oldest is recycled into the pool.
func (s *Set) Commit(name string, f *field.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.lookup(name)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("%w: nil field for slot %q", ErrNotInFlight, name)
	}
	if _, ok := sl.inflight[f.ID()]; !ok {
		return fmt.Errorf("%w: field %d, slot %q", ErrNotInFlight, f.ID(), name)
	}
	delete(sl.inflight, f.ID())

	sl.history = append(sl.history, nil)
	copy(sl.history[1:], sl.history)
	sl.history[0] = f

	if len(sl.history) > sl.depth {
		evicted := sl.history[len(sl.history)-1]
		sl.history = sl.history[:len(sl.history)-1]
		sl.free = append(sl.free, evicted)
	}
	sl.commits++
	return nil
}

// Commits returns the number of commits since the slot was last (re)allocated.
func (s *Set) Commits(name string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.slots[name]; ok {
		return sl.commits
	}
	return 0
}

// Reshape reallocates every slot at the new extent, keeping channel counts
// and depths, and resets all history. On failure the previous storage is
// kept intact and the allocation error is returned.
func (s *Set) Reshape(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, sl := range s.slots {
		if len(sl.inflight) > 0 {
			return fmt.Errorf("slots: reshape with %d writes in flight on %q", len(sl.inflight), name)
		}
	}

	type backup struct {
		history []*field.Field
		free    []*field.Field
		shape   field.Shape
		commits uint64
	}
	old := make(map[string]backup, len(s.slots))
	var done []*slot

	for name, sl := range s.slots {
		old[name] = backup{history: sl.history, free: sl.free, shape: sl.shape, commits: sl.commits}
		shape := field.Shape{Width: width, Height: height, Channels: sl.shape.Channels}
		if err := s.populate(sl, shape); err != nil {
			// Roll back slots that were already reallocated.
			for _, d := range done {
				s.releaseAll(d)
				b := old[d.name]
				d.history, d.free, d.shape, d.commits = b.history, b.free, b.shape, b.commits
				d.inflight = make(map[uint64]*field.Field)
			}
			b := old[name]
			sl.history, sl.free, sl.shape, sl.commits = b.history, b.free, b.shape, b.commits
			return fmt.Errorf("reshape slot %q: %w", name, err)
		}
		done = append(done, sl)
	}

	for _, b := range old {
		for _, f := range b.history {
			s.alloc.Release(f)
		}
		for _, f := range b.free {
			s.alloc.Release(f)
		}
	}
	return nil
}

func (s *Set) releaseAll(sl *slot) {
	for _, f := range sl.history {
		s.alloc.Release(f)
	}
	for _, f := range sl.free {
		s.alloc.Release(f)
	}
	for _, f := range sl.inflight {
		s.alloc.Release(f)
	}
	sl.history, sl.free = nil, nil
	sl.inflight = make(map[uint64]*field.Field)
}

// Close releases every Field owned by the set.
func (s *Set) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, sl := range s.slots {
		s.releaseAll(sl)
		delete(s.slots, name)
	}
}
