package verification

import "sync"

// MemorySlots is a SlotStore backed by a map. It is safe for concurrent use.
type MemorySlots struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string]string)}
}

func (m *MemorySlots) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[name]
	return v, ok
}

func (m *MemorySlots) Set(name, value string) {
	m.mu.Lock()
	m.slots[name] = value
	m.mu.Unlock()
}

func (m *MemorySlots) Clear(name string) {
	m.mu.Lock()
	delete(m.slots, name)
	m.mu.Unlock()
}
