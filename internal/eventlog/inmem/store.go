// Package inmem provides an in-process ports.EventLog backed by a bounded
// per-workspace ring buffer plus fan-out channels for live subscribers. It
// is the default Event Log for the local single-user adapter and for tests;
// the remote adapter uses internal/eventlog/mongo instead.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mindscape-ai/core/internal/ports"
)

const defaultRingSize = 4096

type workspaceLog struct {
	mu     sync.Mutex
	events []ports.Event
	subs   map[int]chan ports.Event
	nextID int
	ringN  int
}

// Store is an in-memory, process-local Event Log.
type Store struct {
	mu         sync.Mutex
	workspaces map[string]*workspaceLog
	ringSize   int
	seq        uint64
}

// New constructs an in-memory Event Log. ringSize bounds the number of
// events retained per workspace; 0 selects a sane default.
func New(ringSize int) *Store {
	if ringSize <= 0 {
		ringSize = defaultRingSize
	}
	return &Store{
		workspaces: make(map[string]*workspaceLog),
		ringSize:   ringSize,
	}
}

func (s *Store) logFor(workspaceID string) *workspaceLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.workspaces[workspaceID]
	if !ok {
		wl = &workspaceLog{subs: make(map[int]chan ports.Event), ringN: s.ringSize}
		s.workspaces[workspaceID] = wl
	}
	return wl
}

// Append adds an event to its workspace's log and fans it out to any
// live subscribers. Subscribers that are not keeping up have the event
// dropped for them rather than blocking the writer.
func (s *Store) Append(ctx context.Context, event ports.Event) error {
	if event.WorkspaceID == "" {
		return fmt.Errorf("eventlog: workspace_id is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	wl := s.logFor(event.WorkspaceID)

	wl.mu.Lock()
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	if event.ID == "" {
		event.ID = fmt.Sprintf("%s-%d", event.WorkspaceID, seq)
	}
	wl.events = append(wl.events, event)
	if len(wl.events) > wl.ringN {
		wl.events = wl.events[len(wl.events)-wl.ringN:]
	}
	for _, ch := range wl.subs {
		select {
		case ch <- event:
		default:
		}
	}
	wl.mu.Unlock()
	return nil
}

// Range returns events for a workspace that occurred at or after since, up
// to limit entries. A zero limit returns all matching retained events.
func (s *Store) Range(ctx context.Context, workspaceID string, since time.Time, limit int) ([]ports.Event, error) {
	wl := s.logFor(workspaceID)
	wl.mu.Lock()
	defer wl.mu.Unlock()

	var out []ports.Event
	for _, e := range wl.events {
		if !since.IsZero() && e.OccurredAt.Before(since) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Subscribe registers a live subscriber for a workspace's timeline. The
// returned cancel func must be called to release the subscription.
func (s *Store) Subscribe(ctx context.Context, workspaceID string) (<-chan ports.Event, func(), error) {
	wl := s.logFor(workspaceID)
	ch := make(chan ports.Event, 64)

	wl.mu.Lock()
	id := wl.nextID
	wl.nextID++
	wl.subs[id] = ch
	wl.mu.Unlock()

	cancel := func() {
		wl.mu.Lock()
		delete(wl.subs, id)
		wl.mu.Unlock()
		close(ch)
	}
	return ch, cancel, nil
}
