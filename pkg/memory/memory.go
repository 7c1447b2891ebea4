package memory

import (
	"sync"

	"github.com/boristopalov/simenv/pkg/core"
)

// Memory keeps the most recent observations of an agent, dropping the
// oldest once capacity is reached.
type Memory struct {
	observations []core.Observation
	capacity     int
	mu           sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		observations: make([]core.Observation, 0, capacity),
		capacity:     capacity,
	}
}

// GetAll returns a copy of all stored observations, oldest first
func (m *Memory) GetAll() []core.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modifications
	out := make([]core.Observation, len(m.observations))
	copy(out, m.observations)
	return out
}

// Latest returns the most recent observation
func (m *Memory) Latest() (core.Observation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.observations) == 0 {
		return core.Observation{}, false
	}
	return m.observations[len(m.observations)-1], true
}

func (m *Memory) Store(obs core.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observations = append(m.observations, obs)
	if len(m.observations) > m.capacity {
		m.observations = m.observations[len(m.observations)-m.capacity:]
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observations)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations = make([]core.Observation, 0, m.capacity)
}
