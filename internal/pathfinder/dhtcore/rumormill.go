package dhtcore

import "github.com/dantte-lp/corepf/internal/address"

// DefaultRumorMillCapacity is the bounded queue size spec §4.6 fixes for
// the rumor mill.
const DefaultRumorMillCapacity = 64

// RumorMill is a bounded FIFO of candidate node addresses worth probing.
// Once full, the oldest candidate is dropped to make room for a new one.
type RumorMill struct {
	capacity int
	items    []address.IP6
}

// NewRumorMill constructs a rumor mill with the given capacity. A
// non-positive capacity falls back to DefaultRumorMillCapacity.
func NewRumorMill(capacity int) *RumorMill {
	if capacity <= 0 {
		capacity = DefaultRumorMillCapacity
	}
	return &RumorMill{capacity: capacity, items: make([]address.IP6, 0, capacity)}
}

// Insert adds ip6 to the mill, dropping the oldest candidate if the
// mill is already at capacity.
func (m *RumorMill) Insert(ip6 address.IP6) {
	if len(m.items) >= m.capacity {
		m.items = m.items[1:]
	}
	m.items = append(m.items, ip6)
}

// Len reports how many candidates are currently queued.
func (m *RumorMill) Len() int {
	return len(m.items)
}

// Drain removes and returns every queued candidate, oldest first.
func (m *RumorMill) Drain() []address.IP6 {
	out := m.items
	m.items = make([]address.IP6, 0, m.capacity)
	return out
}
