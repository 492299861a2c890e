package fleet

// OrderedMap is a map that remembers key insertion order. Each key keeps the
// slot it was first inserted at; replacing its value never moves it.
type OrderedMap[K comparable, V any] struct {
	index  map[K]int
	keys   []K
	values []V
}

// NewOrderedMap returns an empty map with room for n entries.
func NewOrderedMap[K comparable, V any](n int) *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		index:  make(map[K]int, n),
		keys:   make([]K, 0, n),
		values: make([]V, 0, n),
	}
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Get returns the value stored for k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	i, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return m.values[i], true
}

// Has reports whether k is present.
func (m *OrderedMap[K, V]) Has(k K) bool {
	_, ok := m.index[k]
	return ok
}

// Set stores v under k. New keys are appended; existing keys keep their slot.
// It returns the slot used.
func (m *OrderedMap[K, V]) Set(k K, v V) int {
	if i, ok := m.index[k]; ok {
		m.values[i] = v
		return i
	}
	i := len(m.keys)
	m.index[k] = i
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
	return i
}

// Values returns a copy of the values in insertion order.
func (m *OrderedMap[K, V]) Values() []V {
	out := make([]V, len(m.values))
	copy(out, m.values)
	return out
}
