// Package inmem provides process-local SignalStore/CardStore/ClusterStore
// implementations for the local adapter and for tests.
package inmem

import (
	"context"
	"sync"

	"github.com/mindscape-ai/core/internal/intent"
)

const defaultSignalRing = 512

// SignalStore is a bounded per-workspace ring buffer of pending signals.
type SignalStore struct {
	mu    sync.Mutex
	ring  map[string][]*intent.Signal
	ringN int
}

func NewSignalStore(ringN int) *SignalStore {
	if ringN <= 0 {
		ringN = defaultSignalRing
	}
	return &SignalStore{ring: make(map[string][]*intent.Signal), ringN: ringN}
}

func (s *SignalStore) Append(ctx context.Context, sig *intent.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.ring[sig.WorkspaceID], sig)
	if len(list) > s.ringN {
		list = list[len(list)-s.ringN:]
	}
	s.ring[sig.WorkspaceID] = list
	return nil
}

func (s *SignalStore) Recent(ctx context.Context, workspaceID string, limit int) ([]*intent.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.ring[workspaceID]
	if limit <= 0 || limit >= len(list) {
		out := make([]*intent.Signal, len(list))
		copy(out, list)
		return out, nil
	}
	out := make([]*intent.Signal, limit)
	copy(out, list[len(list)-limit:])
	return out, nil
}

func (s *SignalStore) Delete(ctx context.Context, workspaceID, signalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.ring[workspaceID]
	for i, sig := range list {
		if sig.ID == signalID {
			s.ring[workspaceID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// CardStore is a mutex-guarded in-memory CardStore.
type CardStore struct {
	mu    sync.RWMutex
	cards map[string]map[string]*intent.Card
}

func NewCardStore() *CardStore {
	return &CardStore{cards: make(map[string]map[string]*intent.Card)}
}

func (s *CardStore) Create(ctx context.Context, c *intent.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.cards[c.WorkspaceID]
	if !ok {
		byID = make(map[string]*intent.Card)
		s.cards[c.WorkspaceID] = byID
	}
	cp := *c
	byID[c.ID] = &cp
	return nil
}

func (s *CardStore) Get(ctx context.Context, workspaceID, cardID string) (*intent.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID, ok := s.cards[workspaceID]
	if !ok {
		return nil, intent.ErrCardNotFound
	}
	c, ok := byID[cardID]
	if !ok {
		return nil, intent.ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CardStore) Update(ctx context.Context, c *intent.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.cards[c.WorkspaceID]
	if !ok {
		return intent.ErrCardNotFound
	}
	if _, ok := byID[c.ID]; !ok {
		return intent.ErrCardNotFound
	}
	cp := *c
	byID[c.ID] = &cp
	return nil
}

func (s *CardStore) List(ctx context.Context, workspaceID string, status intent.CardStatus) ([]*intent.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*intent.Card
	for _, c := range s.cards[workspaceID] {
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// ClusterStore is a mutex-guarded in-memory ClusterStore.
type ClusterStore struct {
	mu       sync.RWMutex
	clusters map[string][]*intent.Cluster
}

func NewClusterStore() *ClusterStore {
	return &ClusterStore{clusters: make(map[string][]*intent.Cluster)}
}

func (s *ClusterStore) Replace(ctx context.Context, workspaceID string, clusters []*intent.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters[workspaceID] = clusters
	return nil
}

func (s *ClusterStore) List(ctx context.Context, workspaceID string) ([]*intent.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clusters[workspaceID], nil
}
