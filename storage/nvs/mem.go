package nvs

import "sync"

// Mem is an in-RAM Store. On MCU builds it stands in for flash on boards
// without a key/value partition; tests use it directly.
type Mem struct {
	mu   sync.Mutex
	data map[string]map[string]string

	// FailPuts makes every Put fail (tests).
	FailPuts bool
}

func NewMem() *Mem { return &Mem{data: map[string]map[string]string{}} }

func (m *Mem) Get(ns, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[ns][key]
	return v, ok
}

func (m *Mem) Put(ns, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts {
		return errWriteFailed
	}
	bucket := m.data[ns]
	if bucket == nil {
		bucket = map[string]string{}
		m.data[ns] = bucket
	}
	bucket[key] = val
	return nil
}

func (m *Mem) Clear(ns string) error {
	m.mu.Lock()
	delete(m.data, ns)
	m.mu.Unlock()
	return nil
}

// Len reports the number of keys in ns.
func (m *Mem) Len(ns string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data[ns])
}
