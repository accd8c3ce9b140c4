package audit

import (
	"context"
	"sync"

	id "garita/pkg/domain"
)

// InMemoryStore keeps events in process memory, in append order. Suitable
// for tests and single-instance kiosks.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListBySubmission(_ context.Context, submissionID id.SubmissionID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.SubmissionID == submissionID {
			out = append(out, e)
		}
	}
	return out, nil
}
