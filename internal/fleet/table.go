package fleet

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSize is the number of walls wired to one master.
const DefaultSize = 4

// Observer receives every slot write after it is visible to readers.
type Observer func(id int, status NodeStatus)

// Table is a fixed-size set of wall slots. Set has a single writer (the
// updateStatus handler); Get and Snapshot are lock-free and never observe a
// partially written slot.
type Table struct {
	slots []atomic.Pointer[NodeStatus]
	now   func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

func NewTable(n int) *Table {
	if n <= 0 {
		n = DefaultSize
	}
	t := &Table{
		slots: make([]atomic.Pointer[NodeStatus], n),
		now:   time.Now,
	}
	for i := range t.slots {
		s := initialStatus(i)
		t.slots[i].Store(&s)
	}
	return t
}

func (t *Table) Len() int {
	return len(t.slots)
}

// Valid reports whether id names a slot.
func (t *Table) Valid(id int) bool {
	return id >= 0 && id < len(t.slots)
}

// Set overwrites address and delivery status for slot id. An out-of-range
// id is a programming error and panics.
func (t *Table) Set(id int, status NodeStatus) {
	if !t.Valid(id) {
		panic(fmt.Sprintf("fleet: slot %d out of range [0,%d)", id, len(t.slots)))
	}
	next := NodeStatus{
		ID:                 id,
		Address:            status.Address,
		LastDeliveryStatus: status.LastDeliveryStatus,
		UpdatedAt:          status.UpdatedAt,
	}
	if next.Address == "" {
		next.Address = UnknownAddress
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = t.now()
	}
	t.slots[id].Store(&next)

	t.mu.RLock()
	observers := t.observers
	t.mu.RUnlock()
	for _, fn := range observers {
		fn(id, next)
	}
}

// Get returns a copy of slot id. Out-of-range ids panic like Set.
func (t *Table) Get(id int) NodeStatus {
	if !t.Valid(id) {
		panic(fmt.Sprintf("fleet: slot %d out of range [0,%d)", id, len(t.slots)))
	}
	return *t.slots[id].Load()
}

func (t *Table) Snapshot() []NodeStatus {
	out := make([]NodeStatus, len(t.slots))
	for i := range t.slots {
		out[i] = *t.slots[i].Load()
	}
	return out
}

// Subscribe registers fn for every subsequent Set.
func (t *Table) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	next := make([]Observer, len(t.observers), len(t.observers)+1)
	copy(next, t.observers)
	t.observers = append(next, fn)
}
