package ranging

import (
	"context"
	"rtb-engine/internal/models"
	"sync"
)

// ResultStore keeps the last result per (peer, origin). Put replaces the
// previous entry as a whole.
type ResultStore interface {
	Put(ctx context.Context, peer models.PeerAddress, origin models.Origin, result models.RangingResult) error
	Get(ctx context.Context, peer models.PeerAddress, origin models.Origin) (models.RangingResult, bool, error)
}

type resultKey struct {
	peer   models.PeerAddress
	origin models.Origin
}

type MemoryStore struct {
	mu      sync.RWMutex
	results map[resultKey]models.RangingResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[resultKey]models.RangingResult)}
}

func (m *MemoryStore) Put(_ context.Context, peer models.PeerAddress, origin models.Origin, result models.RangingResult) error {
	result.Antennas = append([]models.AntennaEstimate(nil), result.Antennas...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[resultKey{peer, origin}] = result
	return nil
}

func (m *MemoryStore) Get(_ context.Context, peer models.PeerAddress, origin models.Origin) (models.RangingResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[resultKey{peer, origin}]
	return result, ok, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

var _ ResultStore = (*MemoryStore)(nil)
