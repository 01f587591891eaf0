package memory

import (
	"sync"

	"github.com/TheusHen/kexget/kexget/exchange"
)

// Store is an in-memory exchange.Exchanger.
// It is useful for tests, examples and peers living in one process.
type Store struct {
	mu    sync.RWMutex
	peers map[string]exchange.Material
}

func New() *Store {
	return &Store{peers: map[string]exchange.Material{}}
}

func (s *Store) Publish(m exchange.Material) error {
	if m.Name == "" {
		return exchange.ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[m.Name] = m.Clone()
	return nil
}

func (s *Store) Lookup(name string) (exchange.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.peers[name]
	if !ok {
		return exchange.Material{}, exchange.ErrNotFound
	}
	return m.Clone(), nil
}
